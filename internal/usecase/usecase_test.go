package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"FinFit/internal/domain/models"
	"FinFit/internal/middleware"
	"FinFit/internal/services/curvefit"
	"FinFit/internal/services/ingest"
	"FinFit/internal/services/report"
	"FinFit/pkg/cache"
	pkgkafka "FinFit/pkg/kafka"
	"FinFit/pkg/linalg"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	datasets map[string]*models.Dataset
}

func (s *fakeSource) Load(_ context.Context, name, location string) (*models.Dataset, error) {
	ds, ok := s.datasets[location]
	if !ok {
		return nil, fmt.Errorf("open %s: not found", location)
	}
	ds.Name = name
	return ds, nil
}

type fakeProcessor struct {
	mu      sync.Mutex
	batches [][]*models.Forecast
	err     error
}

func (p *fakeProcessor) Process(_ context.Context, forecasts []*models.Forecast) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, forecasts)
	return nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	forecasts int
	skipped   map[string]int
	sent      map[string]int
	errs      map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{skipped: map[string]int{}, sent: map[string]int{}, errs: map[string]int{}}
}

func (m *fakeMetrics) RecordForecast(string, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecasts++
}

func (m *fakeMetrics) RecordSkipped(_ string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[reason]++
}

func (m *fakeMetrics) RecordMessageSent(backend string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[backend] += n
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func newFitter(t *testing.T, opts ...curvefit.StrategyOption) *curvefit.Fitter {
	t.Helper()
	f, err := curvefit.NewFitter(nil, nil, opts...)
	require.NoError(t, err)
	return f
}

func companies(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Company: ") {
			names = append(names, strings.TrimPrefix(line, "Company: "))
		}
	}
	return names
}

func TestForecastRunnerRun(t *testing.T) {
	src := &fakeSource{datasets: map[string]*models.Dataset{
		"dividends.csv": {Series: []models.Series{
			{Symbol: "A", Values: []float64{10, 20, 30, 40}},
			{Symbol: "B", Values: []float64{1, 2, 3}},
			{Symbol: "C", Values: []float64{1, 2, 3, 4}},
		}},
		"earnings.csv": {},
	}}
	proc := &fakeProcessor{}
	m := newFakeMetrics()
	r := NewForecastRunner(src, newFitter(t), proc, m, nil, 1)

	var buf bytes.Buffer
	rep, err := report.New(&buf, report.FormatText)
	require.NoError(t, err)

	err = r.Run(context.Background(), []DatasetRef{
		{Name: "Dividends", Location: "dividends.csv"},
		{Name: "Missing", Location: "missing.csv"},
		{Name: "Earnings", Location: "earnings.csv"},
	}, rep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.csv")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Dividends\n======================================\nCompany: A\n"), out)
	assert.Contains(t, out, "Linear prediction for next quarter = 50\n")
	assert.Contains(t, out, "\nEarnings\n======================================\n")
	assert.NotContains(t, out, "Missing")
	assert.Equal(t, []string{"A", "C"}, companies(out))

	require.Len(t, proc.batches, 1)
	assert.Len(t, proc.batches[0], 8)
	assert.Equal(t, "Dividends", proc.batches[0][0].Dataset)
	assert.Equal(t, 8, m.forecasts)
	assert.Equal(t, 1, m.skipped["length_mismatch"])
	assert.Equal(t, 1, m.errs["load"])
}

func TestForecastRunnerWorkersPreserveOrder(t *testing.T) {
	ds := &models.Dataset{}
	var want []string
	for i := 0; i < 50; i++ {
		sym := fmt.Sprintf("S%02d", i)
		want = append(want, sym)
		ds.Series = append(ds.Series, models.Series{Symbol: sym, Values: []float64{1, 2, float64(i + 3), 4}})
	}
	src := &fakeSource{datasets: map[string]*models.Dataset{"x": ds}}
	r := NewForecastRunner(src, newFitter(t), nil, nil, nil, 8)

	var buf bytes.Buffer
	rep, err := report.New(&buf, report.FormatText)
	require.NoError(t, err)
	require.NoError(t, r.RunDataset(context.Background(), DatasetRef{Name: "Revenues", Location: "x"}, rep))
	assert.Equal(t, want, companies(buf.String()))
}

func TestForecastRunnerPartialFit(t *testing.T) {
	src := &fakeSource{datasets: map[string]*models.Dataset{"x": {Series: []models.Series{
		{Symbol: "Z", Values: []float64{0, 1, 2}},
	}}}}
	m := newFakeMetrics()
	r := NewForecastRunner(src, newFitter(t, curvefit.WithLogDomainPolicy(curvefit.Reject)), nil, m, nil, 1)

	var buf bytes.Buffer
	rep, err := report.New(&buf, report.FormatText)
	require.NoError(t, err)
	require.NoError(t, r.RunDataset(context.Background(), DatasetRef{Name: "D", Location: "x"}, rep))

	out := buf.String()
	assert.Contains(t, out, "Linear prediction")
	assert.Contains(t, out, "Logarithmic prediction")
	assert.NotContains(t, out, "Exponential prediction")
	assert.Equal(t, 1, m.errs["fit"])
}

func TestForecastRunnerProcessorError(t *testing.T) {
	src := &fakeSource{datasets: map[string]*models.Dataset{"x": {Series: []models.Series{
		{Symbol: "A", Values: []float64{1, 2, 3}},
	}}}}
	proc := &fakeProcessor{err: errors.New("broker down")}
	r := NewForecastRunner(src, newFitter(t), proc, nil, nil, 1)

	rep, err := report.New(&bytes.Buffer{}, report.FormatText)
	require.NoError(t, err)
	err = r.RunDataset(context.Background(), DatasetRef{Name: "D", Location: "x"}, rep)
	require.ErrorIs(t, err, proc.err)
}

type fakePublisher struct {
	got    []*models.Forecast
	err    error
	closed bool
}

func (p *fakePublisher) Publish(ctx context.Context, f *models.Forecast) error {
	return p.PublishBatch(ctx, []*models.Forecast{f})
}

func (p *fakePublisher) PublishBatch(_ context.Context, forecasts []*models.Forecast) error {
	if p.err != nil {
		return p.err
	}
	p.got = append(p.got, forecasts...)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type fakeStore struct {
	got []*models.Forecast
}

func (s *fakeStore) Init(context.Context) error { return nil }
func (s *fakeStore) StoreBatch(_ context.Context, forecasts []*models.Forecast) error {
	s.got = append(s.got, forecasts...)
	return nil
}
func (s *fakeStore) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Forecast, error) {
	return s.got, nil
}
func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

type fakeStream struct {
	got []*models.Forecast
}

func (s *fakeStream) Broadcast(forecasts []*models.Forecast) {
	s.got = append(s.got, forecasts...)
}

func TestForecastProcessor(t *testing.T) {
	batch := []*models.Forecast{{Symbol: "A", Model: "linear"}, {Symbol: "A", Model: "power"}}
	ctx := context.Background()

	t.Run("kafka", func(t *testing.T) {
		pub, stream, m := &fakePublisher{}, &fakeStream{}, newFakeMetrics()
		p := NewForecastProcessor(pub, nil, stream, m, BackendKafka)
		require.NoError(t, p.Process(ctx, batch))
		assert.Len(t, pub.got, 2)
		assert.Len(t, stream.got, 2)
		assert.Equal(t, 2, m.sent[BackendKafka])

		p.Close()
		assert.True(t, pub.closed)
	})

	t.Run("clickhouse", func(t *testing.T) {
		store := &fakeStore{}
		p := NewForecastProcessor(nil, store, nil, nil, BackendClickHouse)
		require.NoError(t, p.Process(ctx, batch))
		assert.Len(t, store.got, 2)
	})

	t.Run("none still streams", func(t *testing.T) {
		stream, m := &fakeStream{}, newFakeMetrics()
		p := NewForecastProcessor(nil, nil, stream, m, "")
		require.NoError(t, p.Process(ctx, batch))
		assert.Len(t, stream.got, 2)
		assert.Empty(t, m.sent)
	})

	t.Run("backend error skips stream", func(t *testing.T) {
		pub, stream, m := &fakePublisher{err: errors.New("down")}, &fakeStream{}, newFakeMetrics()
		p := NewForecastProcessor(pub, nil, stream, m, BackendKafka)
		require.ErrorIs(t, p.Process(ctx, batch), pub.err)
		assert.Empty(t, stream.got)
		assert.Equal(t, 1, m.errs["process_batch"])
	})

	t.Run("misconfigured", func(t *testing.T) {
		require.Error(t, NewForecastProcessor(nil, nil, nil, nil, BackendKafka).Process(ctx, batch))
		require.Error(t, NewForecastProcessor(nil, nil, nil, nil, "s3").Process(ctx, batch))
		require.NoError(t, NewForecastProcessor(nil, nil, nil, nil, "s3").Process(ctx, nil))
	})
}

type countingFitter struct {
	*curvefit.Fitter
	calls int
}

func (f *countingFitter) FitKinds(x linalg.Matrix, y linalg.Vector, kinds []curvefit.Kind) ([]curvefit.Result, error) {
	f.calls++
	return f.Fitter.FitKinds(x, y, kinds)
}

func TestForecastService(t *testing.T) {
	ctx := context.Background()
	fitter := &countingFitter{Fitter: newFitter(t)}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	svc := NewForecastService(fitter, mc, time.Minute, nil)

	req := &models.ForecastRequest{Symbol: "A", Values: []float64{10, 20, 30, 40}, Models: []string{"power", "linear"}}
	got, err := svc.Forecast(ctx, req)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "linear", got[0].Model)
	assert.InDelta(t, 50, got[0].Value.Float64(), 1e-9)
	assert.Equal(t, "power", got[1].Model)

	again, err := svc.Forecast(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, fitter.calls, "second call served from cache")
	assert.InDelta(t, 50, again[0].Value.Float64(), 1e-9)

	req2 := *req
	req2.Values = []float64{10, 20, 30, 41}
	_, err = svc.Forecast(ctx, &req2)
	require.NoError(t, err)
	assert.Equal(t, 2, fitter.calls)

	assert.Len(t, svc.Models(), 4)
}

func TestForecastServiceErrors(t *testing.T) {
	svc := NewForecastService(newFitter(t, curvefit.WithLogDomainPolicy(curvefit.Reject)), nil, 0, nil)

	_, err := svc.Forecast(context.Background(), &models.ForecastRequest{Symbol: "A", Values: []float64{1}, Models: []string{"cubic"}})
	require.ErrorIs(t, err, curvefit.ErrUnknownKind)

	_, err = svc.Forecast(context.Background(), &models.ForecastRequest{Symbol: "A", Values: []float64{-1, 2}, Models: []string{"exponential"}})
	require.ErrorIs(t, err, ErrNoForecast)
	require.ErrorIs(t, err, curvefit.ErrInvalidLogDomain)
}

func TestForecastCacheKey(t *testing.T) {
	a := forecastCacheKey("A", curvefit.AllKinds(), []float64{1, 2, 3})
	assert.True(t, strings.HasPrefix(a, "forecast:"))
	assert.Equal(t, a, forecastCacheKey("A", curvefit.AllKinds(), []float64{1, 2, 3}))
	assert.NotEqual(t, a, forecastCacheKey("B", curvefit.AllKinds(), []float64{1, 2, 3}))
	assert.NotEqual(t, a, forecastCacheKey("A", []curvefit.Kind{curvefit.KindLinear}, []float64{1, 2, 3}))
}

func TestKafkaSeriesHandler(t *testing.T) {
	ctx := context.Background()
	proc, m := &fakeProcessor{}, newFakeMetrics()
	h := NewKafkaSeriesHandler("finfit.series", newFitter(t), proc, m, nil)
	assert.Equal(t, "finfit.series", h.Topic())

	b, err := json.Marshal(models.SeriesMessage{Dataset: "Dividends", Symbol: "A", Values: []float64{10, 20, 30, 40}, Models: []string{"linear"}})
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, b))
	require.Len(t, proc.batches, 1)
	require.Len(t, proc.batches[0], 1)
	f := proc.batches[0][0]
	assert.Equal(t, "Dividends", f.Dataset)
	assert.InDelta(t, 50, f.Value.Float64(), 1e-9)
	assert.Equal(t, 4, f.Periods)

	require.Error(t, h.Handle(ctx, []byte("{")))
	assert.Equal(t, 1, m.errs["consumer_unmarshal"])
	require.ErrorIs(t, h.Handle(ctx, []byte(`{"values":[1]}`)), ingest.ErrNoSymbol)
	require.ErrorIs(t, h.Handle(ctx, []byte(`{"symbol":"A"}`)), ingest.ErrNoValues)
	require.ErrorIs(t, h.Handle(ctx, []byte(`{"symbol":"A","values":[1],"models":["cubic"]}`)), curvefit.ErrUnknownKind)
}

// downProcessor fails its first `fails` calls.
type downProcessor struct {
	mu      sync.Mutex
	fails   int
	batches int
}

func (p *downProcessor) Process(context.Context, []*models.Forecast) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return errors.New("backend down")
	}
	p.batches++
	return nil
}

func (p *downProcessor) delivered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batches
}

func TestKafkaSeriesHandlerDeliversOnceThroughPipeline(t *testing.T) {
	down := &downProcessor{fails: 2}
	pipe := middleware.NewForecastPipeline(down, nil, middleware.WithBackoff(time.Millisecond, 2*time.Millisecond))
	h := NewKafkaSeriesHandler("finfit.series", newFitter(t), pipe, nil, nil)

	b, err := json.Marshal(models.SeriesMessage{Symbol: "A", Values: []float64{10, 20, 30, 40}, Models: []string{"linear"}})
	require.NoError(t, err)

	// The consumer re-runs Handle until it returns nil.
	attempts := 0
	for attempts < 4 {
		attempts++
		if h.Handle(context.Background(), b) == nil {
			break
		}
	}
	assert.Equal(t, 1, attempts)

	pipe.Start(context.Background())
	defer pipe.Stop()
	require.Eventually(t, func() bool { return down.delivered() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, down.delivered())
	assert.Zero(t, pipe.Pending())
}

func TestSeriesSchemaHook(t *testing.T) {
	m := newFakeMetrics()
	proc := &fakeProcessor{}
	h := NewKafkaSeriesHandler("finfit.series", newFitter(t), proc, m, nil)
	hook := h.SchemaHook()

	_, _, _, err := hook.BeforeHandle(context.Background(), "finfit.series", kafka.Message{}, []byte(`{"symbol":"A"}`))
	require.ErrorIs(t, err, pkgkafka.ErrRejected)
	require.ErrorIs(t, err, ingest.ErrNoValues)
	assert.Equal(t, 1, m.errs["consumer_invalid"])

	_, _, _, err = hook.BeforeHandle(context.Background(), "other", kafka.Message{}, []byte("{"))
	require.NoError(t, err, "other topics are not validated")

	// The handler uses the decoded message from the context, not the bytes.
	ctx, _, _, err := hook.BeforeHandle(context.Background(), "finfit.series", kafka.Message{},
		[]byte(`{"dataset":"Earnings","symbol":"B","values":[1,2,3],"models":["linear"]}`))
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, nil))
	require.Len(t, proc.batches, 1)
	assert.Equal(t, "B", proc.batches[0][0].Symbol)
	assert.Equal(t, "Earnings", proc.batches[0][0].Dataset)
}
