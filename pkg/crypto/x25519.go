package crypto

import (
	"crypto/ecdh"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// X25519KeyPair backs the classical and hybrid KEM providers. X25519 is not
// quantum resistant.
type X25519KeyPair struct {
	PublicKey  *ecdh.PublicKey
	PrivateKey *ecdh.PrivateKey
}

func newX25519Pair(sk *ecdh.PrivateKey) *X25519KeyPair {
	return &X25519KeyPair{PublicKey: sk.PublicKey(), PrivateKey: sk}
}

// GenerateX25519KeyPair draws a fresh keypair from Reader.
func GenerateX25519KeyPair() (*X25519KeyPair, error) {
	sk, err := ecdh.X25519().GenerateKey(Reader)
	if err != nil {
		return nil, qerrors.NewCryptoError("GenerateX25519KeyPair", err)
	}
	return newX25519Pair(sk), nil
}

// NewX25519KeyPairFromBytes rebuilds a keypair from a stored 32-byte scalar.
func NewX25519KeyPairFromBytes(secret []byte) (*X25519KeyPair, error) {
	if len(secret) != constants.X25519PrivateKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}
	sk, err := ecdh.X25519().NewPrivateKey(secret)
	if err != nil {
		return nil, qerrors.NewCryptoError("NewX25519KeyPairFromBytes", err)
	}
	return newX25519Pair(sk), nil
}

// ParseX25519PublicKey parses a 32-byte public key or KEM ciphertext.
func ParseX25519PublicKey(data []byte) (*ecdh.PublicKey, error) {
	if len(data) != constants.X25519PublicKeySize {
		return nil, qerrors.ErrInvalidPublicKey
	}
	pk, err := ecdh.X25519().NewPublicKey(data)
	if err != nil {
		return nil, qerrors.NewCryptoError("ParseX25519PublicKey", err)
	}
	return pk, nil
}

// X25519 computes the raw Diffie-Hellman output. Callers feed it through a
// KDF; it is never a key on its own. Low-order peer points are rejected.
func X25519(sk *ecdh.PrivateKey, peer *ecdh.PublicKey) ([]byte, error) {
	switch {
	case sk == nil:
		return nil, qerrors.ErrInvalidPrivateKey
	case peer == nil:
		return nil, qerrors.ErrInvalidPublicKey
	}
	ss, err := sk.ECDH(peer)
	if err != nil {
		return nil, qerrors.NewCryptoError("X25519", err)
	}
	return ss, nil
}

// PublicKeyBytes returns the 32-byte public key.
func (kp *X25519KeyPair) PublicKeyBytes() []byte { return kp.PublicKey.Bytes() }

// PrivateKeyBytes returns a copy of the secret scalar.
func (kp *X25519KeyPair) PrivateKeyBytes() []byte { return kp.PrivateKey.Bytes() }

// Zeroize drops the key references. ecdh does not expose the scalar buffer,
// so it cannot be overwritten in place.
func (kp *X25519KeyPair) Zeroize() {
	kp.PrivateKey = nil
	kp.PublicKey = nil
}
