package metrics

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Span names.
const (
	SpanEncrypt        = "vault.encrypt"
	SpanDecrypt        = "vault.decrypt"
	SpanKEMEncapsulate = "vault.kem.encapsulate"
	SpanKEMDecapsulate = "vault.kem.decapsulate"
	SpanKeyLoad        = "vault.keystore.load"
	SpanRecordPut      = "vault.records.put"
	SpanRecordGet      = "vault.records.get"
	SpanRecordList     = "vault.records.list"
)

// Tracer opens spans around vault operations. The returned context carries
// the span so nested calls become children.
type Tracer interface {
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder)
}

// SpanEnder closes a span; a non-nil error marks it failed.
type SpanEnder func(err error)

// SpanOption adjusts a span at start.
type SpanOption func(attrs map[string]any)

// WithAttributes merges attrs into the span's attributes.
func WithAttributes(attrs map[string]any) SpanOption {
	return func(dst map[string]any) { maps.Copy(dst, attrs) }
}

func spanAttrs(opts []SpanOption) map[string]any {
	attrs := map[string]any{}
	for _, o := range opts {
		o(attrs)
	}
	return attrs
}

// SpanAttributes are the identifiers a vault span may carry. Key material
// and plaintext have no field here.
type SpanAttributes struct {
	RecordID    string
	Scheme      string
	CipherSuite string
	Stage       string
	Bytes       int
	Error       string
}

// ToMap drops zero fields.
func (a SpanAttributes) ToMap() map[string]any {
	m := map[string]any{}
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set("vault.record_id", a.RecordID)
	set("crypto.kem_scheme", a.Scheme)
	set("crypto.cipher_suite", a.CipherSuite)
	set("vault.stage", a.Stage)
	set("error.message", a.Error)
	if a.Bytes > 0 {
		m["vault.bytes"] = a.Bytes
	}
	return m
}

// NoOpTracer is the default tracer.
type NoOpTracer struct{}

func (NoOpTracer) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// RecordedSpan is a finished span kept by SimpleTracer.
type RecordedSpan struct {
	Name       string
	TraceID    string
	SpanID     string
	ParentID   string
	StartTime  time.Time
	Duration   time.Duration
	Attributes map[string]any
	Error      error
}

// SimpleTracer keeps finished spans in memory, in the order they ended.
type SimpleTracer struct {
	mu    sync.Mutex
	spans []RecordedSpan
}

func NewSimpleTracer() *SimpleTracer { return &SimpleTracer{} }

type activeSpanKey struct{}

func (t *SimpleTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	s := &RecordedSpan{
		Name:       name,
		TraceID:    uuid.NewString(),
		SpanID:     uuid.NewString(),
		StartTime:  time.Now(),
		Attributes: spanAttrs(opts),
	}
	if parent, ok := ctx.Value(activeSpanKey{}).(*RecordedSpan); ok {
		s.TraceID, s.ParentID = parent.TraceID, parent.SpanID
	}
	return context.WithValue(ctx, activeSpanKey{}, s), func(err error) {
		s.Duration = time.Since(s.StartTime)
		s.Error = err
		t.mu.Lock()
		t.spans = append(t.spans, *s)
		t.mu.Unlock()
	}
}

// Spans returns a copy of the finished spans.
func (t *SimpleTracer) Spans() []RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.spans)
}

func (t *SimpleTracer) Reset() {
	t.mu.Lock()
	t.spans = nil
	t.mu.Unlock()
}

var (
	tracerMu     sync.RWMutex
	globalTracer Tracer = NoOpTracer{}
)

// SetTracer installs the tracer used by StartSpan and by observers built
// without one.
func SetTracer(t Tracer) {
	tracerMu.Lock()
	globalTracer = t
	tracerMu.Unlock()
}

func GetTracer() Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	return globalTracer
}

func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return GetTracer().StartSpan(ctx, name, opts...)
}
