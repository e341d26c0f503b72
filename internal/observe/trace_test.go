package observe_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/quorumhq/quorum/internal/observe"
)

// installTestTracerProvider swaps the global tracer provider for one backed
// by an in-memory exporter, restoring the original on cleanup.
func installTestTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func TestStartSpan_RecordsNamedSpan(t *testing.T) {
	exp := installTestTracerProvider(t)

	_, span := observe.StartSpan(context.Background(), "retrieval.rank_speakers")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "retrieval.rank_speakers" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "retrieval.rank_speakers")
	}
}

func TestLogger_IncludesTraceAndSpanIDs(t *testing.T) {
	installTestTracerProvider(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	ctx, span := observe.StartSpan(context.Background(), "log-enrichment")
	defer span.End()

	observe.Logger(ctx).Info("ranking started")

	logged := buf.String()
	if !strings.Contains(logged, "trace_id=") {
		t.Errorf("log output missing trace_id: %s", logged)
	}
	if !strings.Contains(logged, "span_id=") {
		t.Errorf("log output missing span_id: %s", logged)
	}
}

func TestLogger_NoSpanLeavesLoggerUnchanged(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	observe.Logger(context.Background()).Info("no active span")

	if logged := buf.String(); strings.Contains(logged, "trace_id") {
		t.Errorf("log output should not carry trace_id: %s", logged)
	}
}

func TestTracer_NotNil(t *testing.T) {
	if observe.Tracer() == nil {
		t.Fatal("Tracer() returned nil")
	}
}
