package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordForecast("Dividends", "linear", true)
	r.RecordForecast("Dividends", "linear", true)
	r.RecordForecast("Dividends", "power", false)
	r.RecordSkipped("Dividends", "invalid_row")
	r.RecordMessageSent("kafka", 8)
	r.RecordError("publish")
	r.RecordLatency("fit", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.forecasts.WithLabelValues("Dividends", "linear", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecasts.WithLabelValues("Dividends", "power", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skipped.WithLabelValues("Dividends", "invalid_row")))
	assert.Equal(t, 8.0, testutil.ToFloat64(r.messagesSent.WithLabelValues("kafka")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("publish")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}
