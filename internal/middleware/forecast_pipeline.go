package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinFit/internal/domain/models"
	domrepo "FinFit/internal/domain/repository"
)

// ErrBufferFull is returned by Process when downstream failed and the
// retry buffer had no room for the batch.
var ErrBufferFull = errors.New("pipeline: retry buffer full")

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, forecasts []*models.Forecast) error
}

// ForecastPipeline sits between the series consumer and the processor.
// It validates batches and, when downstream fails, parks them in a bounded
// buffer that a background loop retries with backoff.
type ForecastPipeline struct {
	proc       Proc
	metrics    domrepo.Metrics
	bufSize    int
	bufCh      chan []*models.Forecast
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	mu         sync.Mutex
	backoffMin time.Duration
	backoffMax time.Duration
}

type PipelineOption func(*ForecastPipeline)

// WithBufferSize sets how many failed batches are kept for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *ForecastPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff sets the retry backoff bounds.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *ForecastPipeline) {
		if min > 0 {
			p.backoffMin = min
		}
		if max >= p.backoffMin {
			p.backoffMax = max
		}
	}
}

// NewForecastPipeline creates a new pipeline.
func NewForecastPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *ForecastPipeline {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	p := &ForecastPipeline{
		proc:       proc,
		metrics:    metrics,
		bufSize:    1000,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan []*models.Forecast, p.bufSize)
	return p
}

// Start launches background flushing of buffered batches. It may be called
// again after Stop.
func (p *ForecastPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	p.stopCh, p.doneCh = stopCh, doneCh
	p.mu.Unlock()

	go p.flushLoop(ctx, stopCh, doneCh)
}

func (p *ForecastPipeline) flushLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	backoff := p.backoffMin
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case batch := <-p.bufCh:
			if err := p.proc.Process(ctx, batch); err == nil {
				backoff = p.backoffMin
				continue
			}
			p.metrics.RecordError("pipeline_flush")
			select {
			case p.bufCh <- batch:
			default:
				p.metrics.RecordError("pipeline_buffer_drop")
			}
			select {
			case <-time.After(backoff):
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
			if backoff *= 2; backoff > p.backoffMax {
				backoff = p.backoffMax
			}
		}
	}
}

// Stop ends background flushing, waits for the loop to exit and returns
// the number of batches still buffered. Those stay queued for a later Start.
func (p *ForecastPipeline) Stop() int {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return p.Pending()
	}
	p.started = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)
	<-doneCh
	return p.Pending()
}

// Pending returns the number of buffered batches.
func (p *ForecastPipeline) Pending() int { return len(p.bufCh) }

// Process validates the batch and forwards it downstream. When downstream
// fails the batch is buffered for background retry and counts as accepted,
// so callers must not resubmit it. Only a full buffer is reported, as
// ErrBufferFull wrapping the downstream error.
func (p *ForecastPipeline) Process(ctx context.Context, forecasts []*models.Forecast) error {
	start := time.Now()
	if len(forecasts) == 0 {
		return nil
	}
	for _, f := range forecasts {
		if err := validateForecast(f); err != nil {
			p.metrics.RecordError("pipeline_validate")
			return err
		}
	}

	if err := p.proc.Process(ctx, forecasts); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- forecasts:
			return nil
		default:
			p.metrics.RecordError("pipeline_buffer_full")
			return fmt.Errorf("pipeline downstream: %w: %w", ErrBufferFull, err)
		}
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateForecast(f *models.Forecast) error {
	if f == nil {
		return fmt.Errorf("forecast nil")
	}
	if f.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if f.Model == "" {
		return fmt.Errorf("model empty")
	}
	if f.Periods <= 0 {
		return fmt.Errorf("periods invalid: %d", f.Periods)
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordForecast(string, string, bool) {}
func (nopMetrics) RecordSkipped(string, string)        {}
func (nopMetrics) RecordMessageSent(string, int)       {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLatency(string, float64)       {}
