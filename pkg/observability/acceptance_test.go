package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/codesmith-dev/codesmith/pkg/observability"
)

// acceptanceSpanCount is the expected number of spans in the acceptance test
// (root + stream chunk + edit).
const acceptanceSpanCount = 3

// acceptanceLinesDone is the simulated line count used in log assertions.
const acceptanceLinesDone = 42

// TestAcceptance_EndToEnd verifies all three observability signals (traces,
// metrics, structured logs with trace context) work together in a single
// simulated stream-transform run.
func TestAcceptance_EndToEnd(t *testing.T) {
	t.Parallel()

	// Setup: in-memory trace exporter.
	spanExporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanExporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("codesmith")

	// Setup: in-memory metric reader.
	metricReader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))
	meter := mp.Meter("codesmith")

	red, err := observability.NewREDMetrics(meter)
	require.NoError(t, err)

	// Setup: structured logger with trace context.
	var logBuf bytes.Buffer

	innerHandler := slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	tracingHandler := observability.NewTracingHandler(innerHandler, "codesmith", "test", observability.ModeCLI)
	logger := slog.New(tracingHandler)

	// Simulate a stream transform: root span, chunk span, edit span, metrics, logs.
	ctx, rootSpan := tracer.Start(context.Background(), "codesmith.process_file")

	_, chunkSpan := tracer.Start(ctx, "codesmith.stream.chunk")
	chunkSpan.End()

	_, editSpan := tracer.Start(ctx, "codesmith.edit.bulk_replace")
	editSpan.End()

	// Record metrics within the trace context.
	red.RecordRequest(ctx, "process_file", "ok", time.Second)

	// Emit a log line within the trace context.
	logger.InfoContext(ctx, "stream.complete", "lines_done", acceptanceLinesDone)

	rootSpan.End()

	// Assert: Traces.
	spans := spanExporter.GetSpans()
	require.Len(t, spans, acceptanceSpanCount, "expected root + 2 child spans")

	spanNames := make(map[string]bool, len(spans))
	for _, s := range spans {
		spanNames[s.Name] = true
	}

	assert.True(t, spanNames["codesmith.process_file"], "root span should exist")
	assert.True(t, spanNames["codesmith.stream.chunk"], "chunk span should exist")
	assert.True(t, spanNames["codesmith.edit.bulk_replace"], "edit span should exist")

	// All spans share the same trace ID.
	traceID := spans[0].SpanContext.TraceID()
	for _, s := range spans[1:] {
		assert.Equal(t, traceID, s.SpanContext.TraceID(),
			"span %q should share trace ID", s.Name)
	}

	// Assert: Metrics.
	var rm metricdata.ResourceMetrics

	err = metricReader.Collect(ctx, &rm)
	require.NoError(t, err)

	reqTotal := findMetric(rm, "codesmith.requests.total")
	require.NotNil(t, reqTotal, "request counter should be recorded")

	reqDuration := findMetric(rm, "codesmith.request.duration.seconds")
	require.NotNil(t, reqDuration, "duration histogram should be recorded")

	// Assert: Logs contain trace_id.
	var logRecord map[string]any

	err = json.Unmarshal(logBuf.Bytes(), &logRecord)
	require.NoError(t, err)

	assert.Equal(t, traceID.String(), logRecord["trace_id"],
		"log line should contain the active trace_id")
	assert.Contains(t, logRecord, "span_id",
		"log line should contain span_id")
	assert.Equal(t, "codesmith", logRecord["service"],
		"log line should contain service name")

	lines, ok := logRecord["lines_done"].(float64)
	require.True(t, ok, "lines_done should be a number")
	assert.InDelta(t, acceptanceLinesDone, lines, 0,
		"log line should contain custom attributes")
}
