package usecase

import (
	"context"
	"fmt"
	"time"

	"FinFit/internal/domain/models"
	drepo "FinFit/internal/domain/repository"
)

const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// Processor hands finished forecasts to whatever sits downstream.
type Processor interface {
	Process(ctx context.Context, forecasts []*models.Forecast) error
}

// ForecastProcessor routes forecasts to the configured backend and then to
// live stream subscribers.
type ForecastProcessor struct {
	pub     drepo.ForecastPublisher
	store   drepo.ForecastStore
	stream  drepo.ForecastStream
	metrics drepo.Metrics
	backend string
}

// NewForecastProcessor creates a new ForecastProcessor instance. pub, store
// and stream may be nil when the matching backend is not in use.
func NewForecastProcessor(
	pub drepo.ForecastPublisher,
	store drepo.ForecastStore,
	stream drepo.ForecastStream,
	metrics drepo.Metrics,
	backend string,
) *ForecastProcessor {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if backend == "" {
		backend = BackendNone
	}
	return &ForecastProcessor{
		pub:     pub,
		store:   store,
		stream:  stream,
		metrics: metrics,
		backend: backend,
	}
}

// Process sends a batch of forecasts to the backend. The stream broadcast
// happens only after the backend accepted the batch.
func (p *ForecastProcessor) Process(ctx context.Context, forecasts []*models.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka:
		if p.pub == nil {
			err = fmt.Errorf("kafka publisher not configured")
			break
		}
		err = p.pub.PublishBatch(ctx, forecasts)
	case BackendClickHouse:
		if p.store == nil {
			err = fmt.Errorf("clickhouse store not configured")
			break
		}
		err = p.store.StoreBatch(ctx, forecasts)
	case BackendNone:
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	if p.backend != BackendNone {
		p.metrics.RecordMessageSent(p.backend, len(forecasts))
	}
	if p.stream != nil {
		p.stream.Broadcast(forecasts)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *ForecastProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
