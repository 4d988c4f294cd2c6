package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	applogger "FinFit/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ErrRejected marks a message a hook refused before handling. The consumer
// does not retry it; it goes to the dead-letter topic when one is set.
var ErrRejected = errors.New("kafka: message rejected")

// ConsumerHook observes each handling attempt. BeforeHandle may replace
// the context and payload passed to the handler.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook implements every method as a no-op. Embed it to override one.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

// HookChain runs BeforeHandle in order and AfterHandle in reverse. The
// first BeforeHandle error stops the chain. A panicking hook is turned into
// ErrRejected before the handler and ignored after it.
type HookChain []ConsumerHook

// NewHookChain drops nil hooks.
func NewHookChain(hooks ...ConsumerHook) HookChain {
	chain := make(HookChain, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			chain = append(chain, h)
		}
	}
	return chain
}

func (c HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	for _, h := range c {
		var err error
		if perr := guard(func() { ctx, km, data, err = h.BeforeHandle(ctx, topic, km, data) }); perr != nil {
			err = perr
		}
		if err != nil {
			return ctx, km, data, err
		}
	}
	return ctx, km, data, nil
}

func (c HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for i := len(c) - 1; i >= 0; i-- {
		h := c[i]
		_ = guard(func() { h.AfterHandle(ctx, topic, km, data, err) })
	}
}

func (c HookChain) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for _, h := range c {
		_ = guard(func() { h.OnError(ctx, topic, km, data, err) })
	}
}

func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: hook panic: %v", ErrRejected, r)
		}
	}()
	fn()
	return nil
}

type ctxKey int

const (
	startTimeKey ctxKey = iota
	traceIDKey
)

// TraceID returns the id TraceHook stored in ctx, if any.
func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceIDKey).(string)
	return s
}

// StartTime returns when TraceHook saw the message, if it did.
func StartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startTimeKey).(time.Time)
	return t, ok
}

// TraceHook stores a trace id and the start time in the handler context.
// The id comes from the "trace_id" header, or is topic/partition/offset
// when the producer sent none.
type TraceHook struct{ NoopHook }

func (TraceHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	id := ""
	for _, h := range km.Headers {
		if h.Key == "trace_id" && len(h.Value) > 0 {
			id = string(h.Value)
			break
		}
	}
	if id == "" {
		id = topic + "/" + strconv.Itoa(km.Partition) + "/" + strconv.FormatInt(km.Offset, 10)
	}
	ctx = context.WithValue(ctx, startTimeKey, time.Now())
	return context.WithValue(ctx, traceIDKey, id), km, data, nil
}

// LogHook warns on failed attempts and logs handled messages at debug
// level with their duration.
type LogHook struct {
	NoopHook
	Logger *applogger.Logger
}

func (h LogHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
	if h.Logger == nil || err != nil {
		return
	}
	fields := h.fields(ctx, topic, km)
	if start, ok := StartTime(ctx); ok {
		fields = append(fields, applogger.Duration("duration_ms", time.Since(start)))
	}
	h.Logger.Debug("kafka message handled", fields...)
}

func (h LogHook) OnError(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
	if h.Logger == nil {
		return
	}
	h.Logger.Warn("kafka handler attempt failed", append(h.fields(ctx, topic, km), applogger.Error(err))...)
}

func (LogHook) fields(ctx context.Context, topic string, km kafka.Message) []applogger.Field {
	fields := []applogger.Field{
		applogger.String("topic", topic),
		applogger.Int("partition", km.Partition),
		applogger.Int64("offset", km.Offset),
	}
	if id := TraceID(ctx); id != "" {
		fields = append(fields, applogger.String("trace_id", id))
	}
	return fields
}
