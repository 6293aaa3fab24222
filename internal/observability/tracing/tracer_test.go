package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_Disabled(t *testing.T) {
	tr, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "noop")
	span.End()
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestNew_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	exp := tracetest.NewInMemoryExporter()
	tr, err := New(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "tenantdir-test",
		ServiceVersion: "test",
		SamplingRate:   1,
	}, WithSyncExporter(exp))
	require.NoError(t, err)

	ctx, parent := tr.Start(context.Background(), "parent")
	_, child := otel.Tracer("store").Start(ctx, "postgres.WithinTx")
	child.End()
	parent.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "postgres.WithinTx", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].Parent.TraceID())

	assert.NoError(t, tr.Shutdown(context.Background()))
}
