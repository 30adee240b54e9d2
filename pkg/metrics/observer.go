package metrics

import (
	"context"
	"time"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// Observer provides observability hooks for vault operations. The engine
// holds one and brackets every encrypt, decrypt and KEM call with it to
// record metrics, spans and log lines in one place.
type Observer struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
}

// ObserverConfig configures an observer. Nil fields fall back to the
// package globals.
type ObserverConfig struct {
	Collector *Collector
	Tracer    Tracer
	Logger    *Logger
}

// NewObserver creates a new observer.
func NewObserver(cfg ObserverConfig) *Observer {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = GetTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}
	return &Observer{
		collector: cfg.Collector,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger.Named("vault"),
	}
}

// Collector returns the observer's collector.
func (o *Observer) Collector() *Collector { return o.collector }

// Logger returns the observer's logger for custom logging.
func (o *Observer) Logger() *Logger { return o.logger }

// OnEncrypt opens a vault.encrypt span. The returned function must be called
// exactly once with the outcome.
func (o *Observer) OnEncrypt(ctx context.Context, attrs SpanAttributes) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanEncrypt, WithAttributes(attrs.ToMap()))

	return ctx, func(err error) {
		if err != nil {
			stage := stageOf(err)
			o.collector.RecordEncryptError(stage)
			o.logger.Warn("encrypt failed", Fields{"stage": stage})
		} else {
			o.collector.RecordEncrypt(time.Since(start))
		}
		endSpan(err)
	}
}

// OnDecrypt opens a vault.decrypt span for recordID. Failures are logged with
// the record id and stage only; the cause stays in the returned error.
func (o *Observer) OnDecrypt(ctx context.Context, attrs SpanAttributes) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanDecrypt, WithAttributes(attrs.ToMap()))

	return ctx, func(err error) {
		if err != nil {
			stage := stageOf(err)
			o.collector.RecordDecryptError(stage)
			switch {
			case qerrors.Is(err, qerrors.ErrAuthenticationFailed):
				o.collector.RecordAuthFailure()
			case qerrors.Is(err, qerrors.ErrDecapsulationFailed):
				o.collector.RecordDecapsulationFailure()
			}
			o.logger.Warn("decrypt failed", Fields{
				"record_id": attrs.RecordID,
				"stage":     stage,
			})
		} else {
			o.collector.RecordDecrypt(time.Since(start))
		}
		endSpan(err)
	}
}

// OnEncapsulate opens a vault.kem.encapsulate span.
func (o *Observer) OnEncapsulate(ctx context.Context, scheme string) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanKEMEncapsulate, WithAttributes(SpanAttributes{Scheme: scheme}.ToMap()))
	return ctx, func(err error) {
		o.collector.RecordEncapsulate(time.Since(start))
		endSpan(err)
	}
}

// OnDecapsulate opens a vault.kem.decapsulate span.
func (o *Observer) OnDecapsulate(ctx context.Context, scheme string) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanKEMDecapsulate, WithAttributes(SpanAttributes{Scheme: scheme}.ToMap()))
	return ctx, func(err error) {
		o.collector.RecordDecapsulate(time.Since(start))
		endSpan(err)
	}
}

// OnKeyLoad opens a vault.keystore.load span.
func (o *Observer) OnKeyLoad(ctx context.Context) (context.Context, func(error)) {
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanKeyLoad)
	return ctx, func(err error) {
		if err != nil {
			o.logger.Error("keystore unavailable", Fields{"error": err.Error()})
		}
		endSpan(err)
	}
}

func stageOf(err error) string {
	var ve *qerrors.VaultError
	if qerrors.As(err, &ve) {
		return string(ve.Stage)
	}
	return "unknown"
}
