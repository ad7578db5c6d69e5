package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
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

func header(m kafka.Message, key string) string {
	return NewHeaderCarrier(&m.Headers).Get(key)
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("tour.ratings_updated", "tour", "t1", "natours", map[string]float64{"ratingsAverage": 4.5})
	require.NoError(t, err)

	assert.Len(t, ev.ID, 36)
	assert.Equal(t, "t1", ev.AggregateID)
	assert.False(t, ev.OccurredAt.IsZero())

	var data map[string]float64
	require.NoError(t, ev.Decode(&data))
	assert.Equal(t, 4.5, data["ratingsAverage"])

	_, err = NewEvent("x", "tour", "t1", "natours", make(chan int))
	assert.Error(t, err)
}

func TestProducer_Publish(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ev, err := NewEvent("review.created", "review", "r1", "natours", map[string]string{"tour": "t1"})
	require.NoError(t, err)
	ev.CorrelationID = "corr-1"

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	require.NoError(t, p.Publish(ctx, "natours.reviews", ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "natours.reviews", msg.Topic)
	assert.Equal(t, "r1", string(msg.Key))
	assert.Equal(t, "review.created", header(msg, "event_type"))
	assert.Equal(t, "corr-1", header(msg, "correlation_id"))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", header(msg, "traceparent"))

	parsed, err := ParseEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, parsed.ID)
	assert.JSONEq(t, `{"tour":"t1"}`, string(parsed.Data))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ev, err := NewEvent("review.created", "review", "r1", "natours", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "natours.reviews", ev)
	assert.ErrorIs(t, err, w.err)
}

func TestProducer_PingWithoutBrokers(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{}, nil, slog.Default())
	assert.Error(t, p.Ping(context.Background()))
}

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("v1")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "v1", c.Get("existing"))
	assert.Equal(t, "", c.Get("missing"))

	c.Set("existing", "v2")
	c.Set("new", "v3")
	assert.Equal(t, "v2", c.Get("existing"))
	assert.ElementsMatch(t, []string{"existing", "new"}, c.Keys())
	assert.Len(t, headers, 2)
}
