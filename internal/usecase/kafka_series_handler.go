package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinFit/internal/domain/models"
	domrepo "FinFit/internal/domain/repository"
	"FinFit/internal/domain/service"
	"FinFit/internal/services/curvefit"
	"FinFit/internal/services/ingest"
	pkgkafka "FinFit/pkg/kafka"
	applogger "FinFit/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// KafkaSeriesHandler fits series arriving on the series topic and hands the
// forecasts to the processor.
//
// The processor is expected to take ownership of a batch it accepts. An
// error returned from Handle makes the consumer run Handle again, so a
// processor that parks failed batches itself must return nil for them.
type KafkaSeriesHandler struct {
	topic     string
	fitter    service.CurveFitter
	processor Processor
	metrics   domrepo.Metrics
	l         *applogger.Logger
	now       func() time.Time
}

func NewKafkaSeriesHandler(topic string, fitter service.CurveFitter, processor Processor, metrics domrepo.Metrics, l *applogger.Logger) *KafkaSeriesHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaSeriesHandler{
		topic:     topic,
		fitter:    fitter,
		processor: processor,
		metrics:   metrics,
		l:         l,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (h *KafkaSeriesHandler) Topic() string { return h.topic }

// Handle fits one {dataset, symbol, values, models?} message. A message
// already decoded by SeriesSchemaHook is taken from ctx.
func (h *KafkaSeriesHandler) Handle(ctx context.Context, b []byte) error {
	msg, ok := seriesFromContext(ctx)
	if !ok {
		var err error
		if msg, err = decodeSeries(b, h.metrics); err != nil {
			return err
		}
	}
	m := msg.SeriesMessage

	start := time.Now()
	results, err := h.fitter.FitKinds(ingest.DesignMatrix(len(m.Values)), m.Values, msg.kinds)
	h.metrics.RecordLatency("fit_series", time.Since(start).Seconds())
	if err != nil {
		h.l.Warn("series fit failed",
			applogger.String("dataset", m.Dataset),
			applogger.String("symbol", m.Symbol),
			applogger.String("trace_id", pkgkafka.TraceID(ctx)),
			applogger.Error(err),
		)
		h.metrics.RecordError("fit")
	}
	if len(results) == 0 {
		return nil
	}

	forecasts := toForecasts(m.Dataset, m.Symbol, results, h.now())
	for _, f := range forecasts {
		h.metrics.RecordForecast(m.Dataset, f.Model, f.Value.Finite())
	}
	if h.processor == nil {
		return nil
	}
	return h.processor.Process(ctx, forecasts)
}

var _ pkgkafka.MessageHandler = (*KafkaSeriesHandler)(nil)

type decodedSeries struct {
	models.SeriesMessage
	kinds []curvefit.Kind
}

type seriesKey struct{}

func seriesFromContext(ctx context.Context) (decodedSeries, bool) {
	d, ok := ctx.Value(seriesKey{}).(decodedSeries)
	return d, ok
}

func decodeSeries(b []byte, metrics domrepo.Metrics) (decodedSeries, error) {
	var m models.SeriesMessage
	if err := json.Unmarshal(b, &m); err != nil {
		metrics.RecordError("consumer_unmarshal")
		return decodedSeries{}, fmt.Errorf("decode series message: %w", err)
	}
	if m.Symbol == "" {
		metrics.RecordError("consumer_invalid")
		return decodedSeries{}, fmt.Errorf("series message: %w", ingest.ErrNoSymbol)
	}
	if len(m.Values) == 0 {
		metrics.RecordError("consumer_invalid")
		return decodedSeries{}, fmt.Errorf("series message %s: %w", m.Symbol, ingest.ErrNoValues)
	}
	kinds, err := curvefit.ParseKinds(m.Models)
	if err != nil {
		metrics.RecordError("consumer_invalid")
		return decodedSeries{}, fmt.Errorf("series message %s: %w", m.Symbol, err)
	}
	return decodedSeries{SeriesMessage: m, kinds: kinds}, nil
}

// SeriesSchemaHook decodes and validates series messages before the
// handler runs. Invalid payloads are rejected once instead of being retried,
// and the decoded message travels to KafkaSeriesHandler in the context.
// Messages from other topics pass through untouched.
type SeriesSchemaHook struct {
	pkgkafka.NoopHook
	Topic   string
	Metrics domrepo.Metrics
}

// SchemaHook returns the validation hook for this handler's topic.
func (h *KafkaSeriesHandler) SchemaHook() SeriesSchemaHook {
	return SeriesSchemaHook{Topic: h.topic, Metrics: h.metrics}
}

func (h SeriesSchemaHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	if h.Topic != "" && topic != h.Topic {
		return ctx, km, data, nil
	}
	metrics := h.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	d, err := decodeSeries(data, metrics)
	if err != nil {
		return ctx, km, data, fmt.Errorf("%w: %w", pkgkafka.ErrRejected, err)
	}
	return context.WithValue(ctx, seriesKey{}, d), km, data, nil
}
