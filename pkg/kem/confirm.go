package kem

import (
	"fmt"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// confirmed adds explicit rejection to a provider. Encapsulate appends
//
//	tag = SHAKE-256("quantum-vault/kem-confirm", ss, innerCt)[:16]
//
// to the inner ciphertext; Decapsulate recomputes the tag from the recovered
// secret and fails with ErrDecapsulationFailed on mismatch. This catches a
// wrong secret key or a corrupted ciphertext even when the inner primitive
// uses implicit rejection.
type confirmed struct {
	inner Provider
}

// Confirmed wraps p with key confirmation. Wrapping twice is a no-op.
func Confirmed(p Provider) Provider {
	if _, ok := p.(*confirmed); ok {
		return p
	}
	return &confirmed{inner: p}
}

// Unwrap returns the provider without key confirmation.
func Unwrap(p Provider) Provider {
	if c, ok := p.(*confirmed); ok {
		return c.inner
	}
	return p
}

func (c *confirmed) Name() string                       { return c.inner.Name() }
func (c *confirmed) QuantumSecure() bool                { return c.inner.QuantumSecure() }
func (c *confirmed) GenerateKeyPair() (*KeyPair, error) { return c.inner.GenerateKeyPair() }

func (c *confirmed) Encapsulate(publicKey []byte) (*Encapsulation, error) {
	enc, err := c.inner.Encapsulate(publicKey)
	if err != nil {
		return nil, err
	}

	tag, err := confirmTag(enc.SharedSecret, enc.Ciphertext)
	if err != nil {
		enc.Zeroize()
		return nil, err
	}

	ct := make([]byte, 0, len(enc.Ciphertext)+len(tag))
	ct = append(ct, enc.Ciphertext...)
	ct = append(ct, tag...)
	enc.Ciphertext = ct
	return enc, nil
}

func (c *confirmed) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) <= constants.KEMConfirmTagSize {
		return nil, fmt.Errorf("%w: %w", qerrors.ErrDecapsulationFailed, qerrors.ErrInvalidCiphertext)
	}
	split := len(ciphertext) - constants.KEMConfirmTagSize
	innerCt, tag := ciphertext[:split], ciphertext[split:]

	ss, err := c.inner.Decapsulate(secretKey, innerCt)
	if err != nil {
		if qerrors.Is(err, qerrors.ErrDecapsulationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", qerrors.ErrDecapsulationFailed, err)
	}

	want, err := confirmTag(ss, innerCt)
	if err != nil {
		crypto.Zeroize(ss)
		return nil, err
	}
	if !crypto.ConstantTimeCompare(tag, want) {
		crypto.Zeroize(ss)
		return nil, qerrors.NewCryptoError(c.inner.Name()+".Decapsulate", qerrors.ErrDecapsulationFailed)
	}
	return ss, nil
}

func confirmTag(ss, ct []byte) ([]byte, error) {
	return crypto.DeriveKeyMultiple(constants.DomainSeparatorKEMConfirm, [][]byte{ss, ct}, constants.KEMConfirmTagSize)
}
