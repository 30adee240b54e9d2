// Package vault implements the hybrid encryption engine.
//
// Every item is sealed under its own symmetric key:
//
//	(ct_kem, ss) = KEM.Encapsulate(pk)
//	K            = HKDF-SHA256(ss, info = suite label)
//	(ct, n, tag) = AEAD.Seal(K, plaintext)
//
// Only ct_kem, n, tag and ct are kept. Decryption reverses the pipeline with
// the vault's secret key. A failure at any stage is reported as a
// *errors.VaultError naming the record and stage; the cause is reachable
// through errors.Is but is never part of the message.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/kem"
	"github.com/pzverkov/quantum-vault/pkg/keystore"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
	"github.com/pzverkov/quantum-vault/pkg/records"
	"github.com/pzverkov/quantum-vault/pkg/strength"
)

// SealedRecord is the persisted form of a vault item.
type SealedRecord = records.Record

// Option configures an Engine.
type Option func(*options)

type options struct {
	suite     constants.CipherSuite
	bindTitle bool
	logger    *metrics.Logger
	collector *metrics.Collector
	tracer    metrics.Tracer
	now       func() time.Time
}

// WithSuite selects the AEAD suite for new records. Existing records are
// always opened with the suite they name.
func WithSuite(suite constants.CipherSuite) Option {
	return func(o *options) { o.suite = suite }
}

// WithTitleBinding authenticates each record's title as associated data, so
// a ciphertext moved under another title fails to open.
func WithTitleBinding() Option {
	return func(o *options) { o.bindTitle = true }
}

// WithLogger sets the logger.
func WithLogger(l *metrics.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithTracer sets the tracer.
func WithTracer(t metrics.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithClock overrides the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Engine seals and opens vault items. It is safe for concurrent use.
type Engine struct {
	store     keystore.Store
	provider  kem.Provider
	suite     constants.CipherSuite
	bindTitle bool
	observer  *metrics.Observer
	now       func() time.Time
}

// New returns an engine using store for key material and provider for
// encapsulation. The provider must be the one the store was created with.
func New(store keystore.Store, provider kem.Provider, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("vault: nil keystore")
	}
	if provider == nil {
		return nil, errors.New("vault: nil kem provider")
	}

	o := options{
		suite:  constants.CipherSuiteAES256GCM,
		logger: metrics.NullLogger(),
		tracer: metrics.NoOpTracer{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.suite.IsSupported() {
		return nil, qerrors.ErrUnsupportedCipherSuite
	}
	if crypto.FIPSMode() && !o.suite.IsFIPSApproved() {
		return nil, fmt.Errorf("%w: %s is not FIPS approved", qerrors.ErrUnsupportedCipherSuite, o.suite)
	}
	if o.collector == nil {
		o.collector = metrics.NewCollector(nil)
	}

	return &Engine{
		store:     store,
		provider:  provider,
		suite:     o.suite,
		bindTitle: o.bindTitle,
		observer: metrics.NewObserver(metrics.ObserverConfig{
			Collector: o.collector,
			Tracer:    o.tracer,
			Logger:    o.logger,
		}),
		now: o.now,
	}, nil
}

// Provider returns the engine's KEM provider.
func (e *Engine) Provider() kem.Provider { return e.provider }

// Suite returns the AEAD suite used for new records.
func (e *Engine) Suite() constants.CipherSuite { return e.suite }

// Collector returns the engine's metrics collector.
func (e *Engine) Collector() *metrics.Collector { return e.observer.Collector() }

// EnsurePublicKey returns the vault's public key, creating the keypair on
// first use.
func (e *Engine) EnsurePublicKey() ([]byte, error) {
	kp, err := e.store.EnsureKeyPair()
	if err != nil {
		return nil, err
	}
	kp.Zeroize()
	return kp.PublicKey, nil
}

// Encrypt seals plaintext under a fresh encapsulation and returns the record.
// No key material is retained once it returns.
func (e *Engine) Encrypt(ctx context.Context, title string, plaintext []byte) (rec *SealedRecord, err error) {
	ctx, done := e.observer.OnEncrypt(ctx, metrics.SpanAttributes{
		Scheme:      e.provider.Name(),
		CipherSuite: e.suite.String(),
		Bytes:       len(plaintext),
	})
	defer func() { done(err) }()

	_, keyDone := e.observer.OnKeyLoad(ctx)
	pk, err := e.store.LoadPublicKey()
	keyDone(err)
	if err != nil {
		return nil, qerrors.NewEncryptionError(qerrors.StageLoadKey, err)
	}

	_, encDone := e.observer.OnEncapsulate(ctx, e.provider.Name())
	enc, err := e.provider.Encapsulate(pk)
	encDone(err)
	if err != nil {
		return nil, qerrors.NewEncryptionError(qerrors.StageEncapsulate, err)
	}
	defer enc.Zeroize()

	key, err := crypto.DeriveSymmetricKey(enc.SharedSecret, e.suite)
	if err != nil {
		return nil, qerrors.NewEncryptionError(qerrors.StageDerive, err)
	}
	defer crypto.Zeroize(key)

	rec = &SealedRecord{
		ID:            records.NewID(),
		Title:         title,
		KEMCiphertext: enc.Ciphertext,
		CreatedAt:     e.now().UTC(),
		Scheme:        e.provider.Name(),
		Suite:         e.suite.KDFLabel(),
		TitleBound:    e.bindTitle,
	}

	rec.Ciphertext, rec.Nonce, rec.Tag, err = crypto.Seal(e.suite, key, plaintext, associatedData(rec))
	if err != nil {
		return nil, qerrors.NewEncryptionError(qerrors.StageSeal, err)
	}
	return rec, nil
}

// Decrypt opens rec. It never returns partial plaintext: on failure the
// plaintext is nil and the error is a *errors.VaultError.
func (e *Engine) Decrypt(ctx context.Context, rec *SealedRecord) (plaintext []byte, err error) {
	if rec == nil {
		return nil, qerrors.NewDecryptionError("", qerrors.StageOpen, errors.New("nil record"))
	}

	ctx, done := e.observer.OnDecrypt(ctx, metrics.SpanAttributes{
		RecordID:    rec.ID,
		Scheme:      rec.Scheme,
		CipherSuite: rec.Suite,
	})
	defer func() { done(err) }()

	fail := func(stage qerrors.Stage, cause error) ([]byte, error) {
		return nil, qerrors.NewDecryptionError(rec.ID, stage, cause)
	}

	if rec.Scheme != "" && rec.Scheme != e.provider.Name() {
		return fail(qerrors.StageDecapsulate, fmt.Errorf("%w: record sealed with %s",
			qerrors.ErrSchemeMismatch, rec.Scheme))
	}
	suite := e.suite
	if rec.Suite != "" {
		var ok bool
		if suite, ok = constants.ParseCipherSuite(rec.Suite); !ok {
			return fail(qerrors.StageOpen, qerrors.ErrUnsupportedCipherSuite)
		}
	}

	_, keyDone := e.observer.OnKeyLoad(ctx)
	sk, err := e.store.LoadSecretKey()
	keyDone(err)
	if err != nil {
		return fail(qerrors.StageLoadKey, err)
	}
	defer crypto.Zeroize(sk)

	_, decDone := e.observer.OnDecapsulate(ctx, e.provider.Name())
	ss, err := e.provider.Decapsulate(sk, rec.KEMCiphertext)
	decDone(err)
	if err != nil {
		return fail(qerrors.StageDecapsulate, err)
	}
	defer crypto.Zeroize(ss)

	key, err := crypto.DeriveSymmetricKey(ss, suite)
	if err != nil {
		return fail(qerrors.StageDerive, err)
	}
	defer crypto.Zeroize(key)

	plaintext, err = crypto.Open(suite, key, rec.Ciphertext, rec.Nonce, rec.Tag, associatedData(rec))
	if err != nil {
		return fail(qerrors.StageOpen, err)
	}
	return plaintext, nil
}

// ScoreCandidate returns the entropy and crack-time estimates for text.
func (e *Engine) ScoreCandidate(text string) strength.Score { return ScoreCandidate(text) }

// ScoreCandidate scores text without touching any key material.
func ScoreCandidate(text string) strength.Score {
	return strength.Evaluate(text)
}

func associatedData(rec *SealedRecord) []byte {
	if !rec.TitleBound {
		return nil
	}
	return []byte(rec.Title)
}
