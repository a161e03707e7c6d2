package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	t.Setenv(EndpointEnv, "")
	ctx := context.Background()
	p, err := Setup(ctx, "telemetry-test")
	require.NoError(t, err)
	require.False(t, p.Exporting)
	require.Same(t, p.Tracer, otel.GetTracerProvider())
	require.Same(t, p.Meter, otel.GetMeterProvider())
	require.Same(t, p.Logger, global.GetLoggerProvider())

	_, span := p.Tracer.Tracer("t").Start(ctx, "op")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, p.Shutdown(ctx))
	require.NoError(t, p.Shutdown(ctx))
}
