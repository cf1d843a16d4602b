package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := MustNewTracerProvider(
		WithServiceName("servicename"),
		WithSamplingRatio(1),
		WithSpanExporter(exporter),
	)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})

	spanRecorder := tracetest.NewSpanRecorder()
	tp.RegisterSpanProcessor(spanRecorder)

	_, span := tp.Tracer("").Start(context.Background(), "test")
	span.End()

	spans := spanRecorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "test", spans[0].Name())

	require.NoError(t, tp.ForceFlush(context.Background()))
	require.Len(t, exporter.GetSpans(), 1)
}

func TestOTLPExporterDoesNotBlock(t *testing.T) {
	tp := MustNewTracerProvider(
		WithOTLPEndpoint("localhost:4317"),
		WithOTLPInsecure(),
		WithSamplingRatio(0),
	)
	require.NotNil(t, tp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tp.Shutdown(ctx)
}

func TestTraceError(t *testing.T) {
	tp := MustNewTracerProvider(WithSamplingRatio(1), WithSpanExporter(tracetest.NewNoopExporter()))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})

	spanRecorder := tracetest.NewSpanRecorder()
	tp.RegisterSpanProcessor(spanRecorder)

	_, span := tp.Tracer("").Start(context.Background(), "failing")
	TraceError(span, errors.New("boom"))
	span.End()

	spans := spanRecorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}
