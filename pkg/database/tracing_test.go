package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func attrsOf(s tracetest.SpanStub) map[string]string {
	m := make(map[string]string, len(s.Attributes))
	for _, a := range s.Attributes {
		m[string(a.Key)] = a.Value.Emit()
	}
	return m
}

func TestTraceQuery(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "docstore.FindByID", "SELECT data FROM documents WHERE id = $1")
	end(nil)
	_, end = TraceQuery(context.Background(), "docstore.Insert", "INSERT INTO documents")
	end(errors.New("duplicate"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "db.docstore.FindByID", spans[0].Name)
	attrs := attrsOf(spans[0])
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "SELECT data FROM documents WHERE id = $1", attrs["db.statement"])
	assert.Equal(t, codes.Unset, spans[0].Status.Code)

	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "duplicate", spans[1].Status.Description)
}

func TestTraceQuery_SlowQueryLog(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	SetSlowQueryLogging(time.Nanosecond, l)
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "docstore.Aggregate", "SELECT 1")
	time.Sleep(time.Millisecond)
	end(nil)
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "docstore.Aggregate")

	buf.Reset()
	SetSlowQueryLogging(time.Hour, l)
	_, end = TraceQuery(context.Background(), "fast", "SELECT 1")
	end(nil)
	assert.Empty(t, buf.String())
}
