// Package telemetry installs the OpenTelemetry SDK providers used by the
// binaries. Exporters speak OTLP over gRPC when an endpoint is configured
// and are left out otherwise, so spans, metrics and logs stay in process.
package telemetry

import (
	"context"
	"errors"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// EndpointEnv turns on the OTLP exporters.
const EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Providers are the installed SDK providers.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
	Logger *sdklog.LoggerProvider
	// Exporting reports whether OTLP exporters are attached.
	Exporting bool

	shutdown []func(context.Context) error
}

// Shutdown flushes and stops every provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	var err error
	for _, fn := range p.shutdown {
		err = errors.Join(err, fn(ctx))
	}
	p.shutdown = nil
	return err
}

// Setup builds the providers for service and registers them as the
// OpenTelemetry globals. On error everything already started is shut down.
func Setup(ctx context.Context, service string) (p *Providers, err error) {
	p = &Providers{Exporting: os.Getenv(EndpointEnv) != ""}
	defer func() {
		if err != nil {
			err = errors.Join(err, p.Shutdown(ctx))
			p = nil
		}
	}()

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(service)))
	if err != nil {
		return p, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	topts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	mopts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	lopts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	if p.Exporting {
		te, err := otlptracegrpc.New(ctx)
		if err != nil {
			return p, err
		}
		topts = append(topts, sdktrace.WithBatcher(te))

		me, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return p, errors.Join(err, te.Shutdown(ctx))
		}
		mopts = append(mopts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(me)))

		le, err := otlploggrpc.New(ctx)
		if err != nil {
			return p, errors.Join(err, te.Shutdown(ctx), me.Shutdown(ctx))
		}
		lopts = append(lopts, sdklog.WithProcessor(sdklog.NewBatchProcessor(le)))
	}

	p.Tracer = sdktrace.NewTracerProvider(topts...)
	p.shutdown = append(p.shutdown, p.Tracer.Shutdown)
	otel.SetTracerProvider(p.Tracer)

	p.Meter = sdkmetric.NewMeterProvider(mopts...)
	p.shutdown = append(p.shutdown, p.Meter.Shutdown)
	otel.SetMeterProvider(p.Meter)

	p.Logger = sdklog.NewLoggerProvider(lopts...)
	p.shutdown = append(p.shutdown, p.Logger.Shutdown)
	global.SetLoggerProvider(p.Logger)

	return p, nil
}
