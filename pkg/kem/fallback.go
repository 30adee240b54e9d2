package kem

import (
	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// FallbackName is the provider name of FallbackKEM.
const FallbackName = "fallback"

// FallbackKEM is a demo-grade stand-in used when no real KEM is available.
//
// SECURITY: this is not a KEM. Key generation draws one random 32-byte value
// and returns it as both the public and the secret key. Encapsulate derives
// the shared secret from the public key and a random ciphertext:
//
//	ss = HKDF-SHA256(pk || ct, info = "fallback-kem")
//
// and Decapsulate derives it from the secret key:
//
//	ss = HKDF-SHA256(sk || ct, info = "fallback-kem")
//
// The two agree only because pk == sk. Anyone holding the public key can
// therefore recompute every shared secret and decrypt every record. The
// provider is never quantum secure and New logs a warning whenever it is
// selected.
type FallbackKEM struct{}

// NewFallbackKEM returns the fallback provider.
func NewFallbackKEM() *FallbackKEM { return &FallbackKEM{} }

// Name returns "fallback".
func (FallbackKEM) Name() string { return FallbackName }

// QuantumSecure returns false.
func (FallbackKEM) QuantumSecure() bool { return false }

// GenerateKeyPair returns one random value as both keys. The two slices are
// distinct copies so zeroizing the secret key leaves the public key intact.
func (FallbackKEM) GenerateKeyPair() (*KeyPair, error) {
	key, err := crypto.SecureRandomBytes(constants.FallbackKeySize)
	if err != nil {
		return nil, qerrors.NewCryptoError("FallbackKEM.GenerateKeyPair", qerrors.ErrKeyGenerationFailed)
	}
	sk := make([]byte, len(key))
	copy(sk, key)
	return &KeyPair{PublicKey: key, SecretKey: sk}, nil
}

// Encapsulate draws a fresh random ciphertext and derives the shared secret
// from publicKey || ciphertext.
func (FallbackKEM) Encapsulate(publicKey []byte) (*Encapsulation, error) {
	if len(publicKey) != constants.FallbackKeySize {
		return nil, qerrors.NewCryptoError("FallbackKEM.Encapsulate", qerrors.ErrInvalidPublicKey)
	}
	ct, err := crypto.SecureRandomBytes(constants.FallbackCiphertextSize)
	if err != nil {
		return nil, qerrors.NewCryptoError("FallbackKEM.Encapsulate", qerrors.ErrEncapsulationFailed)
	}
	ss, err := fallbackSecret(publicKey, ct)
	if err != nil {
		return nil, err
	}
	return &Encapsulation{Ciphertext: ct, SharedSecret: ss}, nil
}

// Decapsulate derives the shared secret from secretKey || ciphertext.
func (FallbackKEM) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != constants.FallbackCiphertextSize {
		return nil, qerrors.NewCryptoError("FallbackKEM.Decapsulate", qerrors.ErrInvalidCiphertext)
	}
	if len(secretKey) != constants.FallbackKeySize {
		return nil, qerrors.NewCryptoError("FallbackKEM.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	return fallbackSecret(secretKey, ciphertext)
}

func fallbackSecret(key, ct []byte) ([]byte, error) {
	ikm := make([]byte, 0, len(key)+len(ct))
	ikm = append(ikm, key...)
	ikm = append(ikm, ct...)
	defer crypto.Zeroize(ikm)

	return crypto.HKDF(ikm, constants.KDFLabelFallbackKEM, constants.KEMSharedSecretSize)
}
