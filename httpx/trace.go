package httpx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"dqx0.com/go/rawhttp/httpx/header"
)

const instrumentationName = "dqx0.com/go/rawhttp/httpx"

// defaultPropagator carries W3C traceparent/tracestate and baggage.
var defaultPropagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

func tracerFrom(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

func propagatorOr(p propagation.TextMapPropagator) propagation.TextMapPropagator {
	if p == nil {
		return defaultPropagator
	}
	return p
}

// extractTrace returns ctx enriched with the trace context found in h.
func extractTrace(ctx context.Context, p propagation.TextMapPropagator, h *header.Header) context.Context {
	return propagatorOr(p).Extract(ctx, headerCarrier{h: h})
}

// injectTrace writes the trace context of ctx into h, leaving alone any
// field the caller already set.
func injectTrace(ctx context.Context, p propagation.TextMapPropagator, h *header.Header) {
	tmp := header.New()
	propagatorOr(p).Inject(ctx, headerCarrier{h: tmp})
	for name, v := range tmp.All() {
		if !h.Has(name) {
			h.Set(name, v)
		}
	}
}

func endSpan(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if status >= 500 {
		span.SetStatus(codes.Error, "")
	}
	span.End()
}
