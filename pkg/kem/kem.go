// Package kem provides the key encapsulation mechanisms used by the vault.
//
// A Provider is chosen once at startup by New and passed to the vault engine
// as a strategy object. Three variants exist:
//
//   - RealKEM wraps a post-quantum scheme from circl (ML-KEM-768 by default).
//   - FallbackKEM is a demo-grade placeholder for environments that cannot
//     use a real KEM. It is NOT an asymmetric scheme; see fallback.go.
//   - ClassicalKEM is an X25519 DHKEM. It is genuinely asymmetric but not
//     quantum secure, and is only used when configured explicitly.
//   - HybridKEM cascades ClassicalKEM and RealKEM; the shared secret stays
//     safe while either component holds.
//
// Every provider returned by New is wrapped with key confirmation (see
// confirm.go), so decapsulation with the wrong secret key or a corrupted
// ciphertext fails with ErrDecapsulationFailed instead of producing an
// unrelated shared secret.
package kem

import (
	"fmt"
	"strings"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
)

// KeyPair is a serialized KEM keypair. The secret key must not leave the
// keystore except to be handed to Provider.Decapsulate.
type KeyPair struct {
	PublicKey []byte
	SecretKey []byte
}

// Zeroize erases the secret key.
func (kp *KeyPair) Zeroize() {
	if kp == nil {
		return
	}
	crypto.Zeroize(kp.SecretKey)
	kp.SecretKey = nil
}

// Encapsulation is the result of one encapsulation. SharedSecret is
// ephemeral: callers derive a key from it and zeroize it immediately.
type Encapsulation struct {
	Ciphertext   []byte
	SharedSecret []byte
}

// Zeroize erases the shared secret.
func (e *Encapsulation) Zeroize() {
	if e == nil {
		return
	}
	crypto.Zeroize(e.SharedSecret)
	e.SharedSecret = nil
}

// Provider is a key encapsulation mechanism.
//
// Encapsulate is probabilistic: every call yields a fresh ciphertext and
// shared secret. Decapsulate is deterministic and reproduces the shared
// secret for the matching secret key. Implementations are safe for
// concurrent use.
type Provider interface {
	// Name identifies the provider. It is persisted next to the keypair and
	// in every sealed record.
	Name() string

	// QuantumSecure reports whether the provider resists quantum attacks.
	QuantumSecure() bool

	GenerateKeyPair() (*KeyPair, error)
	Encapsulate(publicKey []byte) (*Encapsulation, error)
	Decapsulate(secretKey, ciphertext []byte) ([]byte, error)
}

// Variant selects a Provider implementation.
type Variant string

// Supported variants.
const (
	// VariantAuto uses the real KEM when the scheme resolves, else the fallback.
	VariantAuto      Variant = "auto"
	VariantReal      Variant = "real"
	VariantFallback  Variant = "fallback"
	VariantClassical Variant = "classical"
	VariantHybrid    Variant = "hybrid"
)

// ParseVariant parses a configuration value into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return VariantAuto, nil
	case VariantAuto, VariantReal, VariantFallback, VariantClassical, VariantHybrid:
		return v, nil
	case "pq", "mlkem", "ml-kem":
		return VariantReal, nil
	case "x25519":
		return VariantClassical, nil
	case "ch-kem", "chkem":
		return VariantHybrid, nil
	default:
		return "", fmt.Errorf("kem: unknown variant %q", s)
	}
}

// Option configures New.
type Option func(*options)

type options struct {
	logger *metrics.Logger
}

// WithLogger sets the logger used to report provider selection.
func WithLogger(l *metrics.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New builds the provider for variant. scheme names the circl scheme used by
// the real variant and is ignored by the others. The returned provider is
// wrapped with key confirmation.
func New(variant Variant, scheme string, opts ...Option) (Provider, error) {
	o := options{logger: metrics.NullLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.Named("kem")

	if scheme == "" {
		scheme = constants.DefaultKEMScheme
	}

	var p Provider
	switch variant {
	case VariantReal:
		rk, err := NewRealKEM(scheme)
		if err != nil {
			return nil, err
		}
		p = rk

	case VariantAuto, "":
		rk, err := NewRealKEM(scheme)
		if err != nil {
			log.Warn("post-quantum KEM unavailable, using fallback", metrics.Fields{
				"scheme": scheme,
				"error":  err.Error(),
			})
			p = NewFallbackKEM()
		} else {
			p = rk
		}

	case VariantFallback:
		p = NewFallbackKEM()

	case VariantClassical:
		p = NewClassicalKEM()

	case VariantHybrid:
		hk, err := NewHybridKEM(scheme)
		if err != nil {
			return nil, err
		}
		p = hk

	default:
		return nil, fmt.Errorf("kem: unknown variant %q", variant)
	}

	switch {
	case p.Name() == FallbackName:
		log.Warn("fallback KEM selected: NOT quantum secure, public and secret key are identical; demo use only")
	case !p.QuantumSecure():
		log.Warn("classical KEM selected: not quantum secure", metrics.Fields{"provider": p.Name()})
	default:
		log.Info("KEM provider selected", metrics.Fields{"provider": p.Name()})
	}

	return Confirmed(p), nil
}

// SelfTest runs the pairwise consistency test on kp. The keystore calls it
// on every freshly generated keypair before persisting it.
func SelfTest(p Provider, kp *KeyPair) error {
	if kp == nil {
		return qerrors.NewCryptoError("kem.SelfTest", qerrors.ErrInvalidPrivateKey)
	}
	encap := func() ([]byte, []byte, error) {
		enc, err := p.Encapsulate(kp.PublicKey)
		if err != nil {
			return nil, nil, err
		}
		return enc.Ciphertext, enc.SharedSecret, nil
	}
	decap := func(ct []byte) ([]byte, error) {
		return p.Decapsulate(kp.SecretKey, ct)
	}
	return crypto.RunPairwiseTestKEM(p.Name(), encap, decap)
}
