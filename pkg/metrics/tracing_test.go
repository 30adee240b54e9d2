package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestNoOpTracer(t *testing.T) {
	ctx := context.Background()
	got, end := NoOpTracer{}.StartSpan(ctx, SpanEncrypt)
	if got != ctx {
		t.Error("NoOpTracer replaced the context")
	}
	end(errors.New("ignored"))
}

func TestSimpleTracerNesting(t *testing.T) {
	tr := NewSimpleTracer()
	failure := errors.New("authentication failed")

	ctx, endDecrypt := tr.StartSpan(context.Background(), SpanDecrypt,
		WithAttributes(SpanAttributes{RecordID: "r1"}.ToMap()),
		WithAttributes(map[string]any{"vault.bytes": 7}),
	)
	_, endDecap := tr.StartSpan(ctx, SpanKEMDecapsulate)
	endDecap(nil)
	endDecrypt(failure)

	spans := tr.Spans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans", len(spans))
	}
	decap, decrypt := spans[0], spans[1]
	if decap.Name != SpanKEMDecapsulate || decrypt.Name != SpanDecrypt {
		t.Fatalf("span order: %s, %s", decap.Name, decrypt.Name)
	}
	if decap.ParentID != decrypt.SpanID || decap.TraceID != decrypt.TraceID {
		t.Error("child span not linked to its parent")
	}
	if decrypt.ParentID != "" {
		t.Error("root span has a parent")
	}
	if decrypt.Error != failure || decap.Error != nil {
		t.Errorf("errors: decrypt=%v decap=%v", decrypt.Error, decap.Error)
	}
	if decrypt.Attributes["vault.record_id"] != "r1" || decrypt.Attributes["vault.bytes"] != 7 {
		t.Errorf("attributes not merged: %v", decrypt.Attributes)
	}

	tr.Reset()
	if len(tr.Spans()) != 0 {
		t.Error("Reset kept spans")
	}
}

func TestSimpleTracerConcurrent(t *testing.T) {
	tr := NewSimpleTracer()
	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			for range 25 {
				_, end := tr.StartSpan(context.Background(), SpanRecordPut)
				end(nil)
			}
		})
	}
	wg.Wait()

	spans := tr.Spans()
	if len(spans) != 400 {
		t.Fatalf("got %d spans", len(spans))
	}
	seen := make(map[string]bool, len(spans))
	for _, s := range spans {
		if seen[s.SpanID] {
			t.Fatalf("duplicate span id %s", s.SpanID)
		}
		seen[s.SpanID] = true
	}
}

func TestGlobalTracer(t *testing.T) {
	prev := GetTracer()
	t.Cleanup(func() { SetTracer(prev) })

	tr := NewSimpleTracer()
	SetTracer(tr)
	_, end := StartSpan(context.Background(), SpanKeyLoad)
	end(nil)
	if spans := tr.Spans(); len(spans) != 1 || spans[0].Name != SpanKeyLoad {
		t.Errorf("global StartSpan recorded %v", spans)
	}
}

func TestSpanAttributesToMap(t *testing.T) {
	if m := (SpanAttributes{}).ToMap(); len(m) != 0 {
		t.Errorf("zero attributes produced %v", m)
	}
	m := SpanAttributes{
		RecordID:    "r1",
		Scheme:      "ML-KEM-768",
		CipherSuite: "AES-256-GCM",
		Stage:       "decapsulate",
		Bytes:       32,
		Error:       "boom",
	}.ToMap()
	want := map[string]any{
		"vault.record_id":     "r1",
		"crypto.kem_scheme":   "ML-KEM-768",
		"crypto.cipher_suite": "AES-256-GCM",
		"vault.stage":         "decapsulate",
		"vault.bytes":         32,
		"error.message":       "boom",
	}
	if len(m) != len(want) {
		t.Fatalf("got %v", m)
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %v", k, m[k], v)
		}
	}
}

func TestOTelTracerWithoutProvider(t *testing.T) {
	_, end := NewOTelTracer("").StartSpan(context.Background(), SpanEncrypt,
		WithAttributes(map[string]any{"vault.bytes": 3, "flag": true, "other": struct{}{}}))
	end(errors.New("x"))
}
