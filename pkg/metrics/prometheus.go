package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts    *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder registered on reg. A nil reg
// uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfit_forecasts_total",
				Help: "Total number of fitted forecasts by model and finiteness",
			},
			[]string{"dataset", "model", "finite"},
		),
		skipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfit_skipped_total",
				Help: "Input rows or series that were skipped",
			},
			[]string{"dataset", "reason"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfit_messages_sent_total",
				Help: "Total number of forecasts sent to backend",
			},
			[]string{"backend"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfit_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finfit_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast counts one fitted model.
func (r *Recorder) RecordForecast(dataset, model string, finite bool) {
	r.forecasts.WithLabelValues(dataset, model, strconv.FormatBool(finite)).Inc()
}

// RecordSkipped counts a skipped row or series.
func (r *Recorder) RecordSkipped(dataset, reason string) {
	r.skipped.WithLabelValues(dataset, reason).Inc()
}

// RecordMessageSent records n forecasts sent to a backend.
func (r *Recorder) RecordMessageSent(backend string, n int) {
	r.messagesSent.WithLabelValues(backend).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
