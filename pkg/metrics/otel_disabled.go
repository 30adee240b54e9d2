//go:build !otel

package metrics

import "context"

// OTelTracer is inert unless the binary is built with -tags otel.
type OTelTracer struct{}

func NewOTelTracer(string) *OTelTracer { return &OTelTracer{} }

func (*OTelTracer) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// OTelEnabled reports whether OpenTelemetry support is compiled in.
func OTelEnabled() bool { return false }
