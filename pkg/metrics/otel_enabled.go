//go:build otel

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelTracer forwards spans to the global OpenTelemetry provider.
type OTelTracer struct {
	tracer trace.Tracer
}

func NewOTelTracer(instrumentation string) *OTelTracer {
	if instrumentation == "" {
		instrumentation = "quantum-vault"
	}
	return &OTelTracer{tracer: otel.Tracer(instrumentation)}
}

func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	var kvs []attribute.KeyValue
	for k, v := range spanAttrs(opts) {
		kvs = append(kvs, toAttribute(k, v))
	}
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(kvs...),
	)
	return ctx, func(err error) {
		defer span.End()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}

func OTelEnabled() bool { return true }

func toAttribute(k string, v any) attribute.KeyValue {
	switch v := v.(type) {
	case string:
		return attribute.String(k, v)
	case int:
		return attribute.Int(k, v)
	case int64:
		return attribute.Int64(k, v)
	case bool:
		return attribute.Bool(k, v)
	case float64:
		return attribute.Float64(k, v)
	}
	return attribute.String(k, fmt.Sprint(v))
}
