package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func init() {
	// Keep package metrics off the global registry in tests.
	initProducerMetricsOnce(prometheus.NewRegistry())
	initConsumerMetricsOnce(prometheus.NewRegistry())
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	require.Error(t, err)
}

func TestProducerPublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, comp: "snappy"}

	err := p.PublishBatch(context.Background(), "finfit.forecasts", []Message{
		{Key: []byte("A"), Value: map[string]any{"symbol": "A", "forecast": 50}},
		{Key: []byte("B"), Value: "raw"},
		{Value: []byte("bytes")},
	})
	require.NoError(t, err)

	msgs := w.written()
	require.Len(t, msgs, 3)
	assert.Equal(t, "finfit.forecasts", msgs[0].Topic)
	assert.Equal(t, []byte("A"), msgs[0].Key)
	var v map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Value, &v))
	assert.Equal(t, 50.0, v["forecast"])
	assert.Equal(t, "raw", string(msgs[1].Value))
	assert.Equal(t, "bytes", string(msgs[2].Value))

	require.NoError(t, p.PublishBatch(context.Background(), "t", nil))
	assert.Len(t, w.written(), 3)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducerPublishMessageAndErrors(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}
	require.NoError(t, p.PublishMessage(context.Background(), "finfit.logs", []string{"x"}))
	assert.Equal(t, `["x"]`, string(w.written()[0].Value))

	w.err = errors.New("broker down")
	err := p.Publish(context.Background(), "t", nil, "v")
	require.ErrorIs(t, err, w.err)

	err = p.Publish(context.Background(), "t", nil, func() {})
	require.Error(t, err)
}

type flakyHandler struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (h *flakyHandler) Topic() string { return "finfit.series" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T, opts ...ConsumerOption) *Consumer {
	t.Helper()
	base := []ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}
	c, err := NewConsumer(append(base, opts...)...)
	require.NoError(t, err)
	return c
}

// recordHook appends its name to a shared log and can fail or panic on
// BeforeHandle.
type recordHook struct {
	name   string
	log    *[]string
	reject error
	panics bool
	errs   *int
}

func (h recordHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, d []byte) (context.Context, kafka.Message, []byte, error) {
	if h.panics {
		panic("boom")
	}
	if h.log != nil {
		*h.log = append(*h.log, "before:"+h.name)
	}
	return ctx, km, append(d, h.name...), h.reject
}

func (h recordHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {
	if h.panics {
		panic("boom")
	}
	if h.log != nil {
		*h.log = append(*h.log, "after:"+h.name)
	}
}

func (h recordHook) OnError(context.Context, string, kafka.Message, []byte, error) {
	if h.errs != nil {
		*h.errs++
	}
}

func TestConsumerRetriesUntilSuccess(t *testing.T) {
	c := newTestConsumer(t)
	h := &flakyHandler{failures: 2}
	c.RegisterHandler(h)

	var errs int
	c.WithConsumerHook(recordHook{errs: &errs})
	c.process(&message{topic: h.Topic(), data: []byte("{}")})

	assert.Equal(t, 3, h.calls)
	assert.Equal(t, 2, errs)
}

func TestConsumerDeadLettersAfterRetries(t *testing.T) {
	c := newTestConsumer(t)
	dlq := &fakeWriter{}
	c.dlq = dlq
	c.cfg.DLQTopic = "finfit.series.dlq"

	h := &flakyHandler{failures: 100}
	c.RegisterHandler(h)
	c.process(&message{topic: h.Topic(), data: []byte("payload"), km: kafka.Message{Key: []byte("A")}})

	assert.Equal(t, 3, h.calls, "one attempt plus RetryMax retries")
	msgs := dlq.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "finfit.series.dlq", msgs[0].Topic)
	assert.Equal(t, "payload", string(msgs[0].Value))
	assert.Equal(t, "source_topic", msgs[0].Headers[0].Key)
	assert.Equal(t, "finfit.series", string(msgs[0].Headers[0].Value))
}

func TestConsumerRejectedMessageSkipsHandler(t *testing.T) {
	c := newTestConsumer(t)
	dlq := &fakeWriter{}
	c.dlq = dlq
	c.cfg.DLQTopic = "finfit.series.dlq"

	h := &flakyHandler{}
	c.RegisterHandler(h)
	var errs int
	c.WithConsumerHook(recordHook{reject: ErrRejected, errs: &errs})
	c.process(&message{topic: h.Topic(), data: []byte("bad")})

	assert.Zero(t, h.calls)
	assert.Equal(t, 1, errs)
	assert.Len(t, dlq.written(), 1)
}

func TestHookChain(t *testing.T) {
	var order []string
	chain := NewHookChain(recordHook{name: "a", log: &order}, nil, recordHook{name: "b", log: &order})
	require.Len(t, chain, 2)

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	require.NoError(t, err)
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)

	assert.Equal(t, "ab", string(data))
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, order)

	t.Run("first error stops", func(t *testing.T) {
		order = nil
		chain := NewHookChain(recordHook{name: "a", log: &order, reject: ErrRejected}, recordHook{name: "b", log: &order})
		_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
		require.ErrorIs(t, err, ErrRejected)
		assert.Equal(t, []string{"before:a"}, order)
	})
}

func TestHookChainRecoversPanics(t *testing.T) {
	chain := NewHookChain(recordHook{panics: true})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "boom")
	assert.NotPanics(t, func() { chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil) })
}

func TestTraceHook(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, _, err := TraceHook{}.BeforeHandle(context.Background(), "t", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceID(ctx))
	_, ok := StartTime(ctx)
	assert.True(t, ok)

	ctx, _, _, err = TraceHook{}.BeforeHandle(context.Background(), "finfit.series", kafka.Message{Partition: 2, Offset: 41}, nil)
	require.NoError(t, err)
	assert.Equal(t, "finfit.series/2/41", TraceID(ctx))

	_, ok = StartTime(context.Background())
	assert.False(t, ok)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}
