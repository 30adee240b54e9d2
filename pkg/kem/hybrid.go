package kem

import (
	"bytes"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// HybridKEM is a cascaded hybrid of ClassicalKEM and a RealKEM scheme.
// Keys and ciphertexts are the X25519 part followed by the post-quantum part:
//
//	pk = X25519 pk (32) || PQ pk
//	sk = X25519 sk (32) || PQ sk
//	ct = ephemeral X25519 pk (32) || PQ ct
//	ss = SHAKE-256("quantum-vault/hybrid-kem", ss_x, ss_pq, pk, ct)[:32]
//
// Binding pk and ct into the combiner ties the secret to this exact
// encapsulation.
type HybridKEM struct {
	classical *ClassicalKEM
	pq        *RealKEM
}

// NewHybridKEM pairs X25519 with the post-quantum scheme name.
func NewHybridKEM(scheme string) (*HybridKEM, error) {
	pq, err := NewRealKEM(scheme)
	if err != nil {
		return nil, err
	}
	return &HybridKEM{classical: NewClassicalKEM(), pq: pq}, nil
}

// Name returns e.g. "X25519+ML-KEM-768".
func (h *HybridKEM) Name() string { return "X25519+" + h.pq.Name() }

// QuantumSecure returns true.
func (h *HybridKEM) QuantumSecure() bool { return true }

// GenerateKeyPair generates both component keypairs.
func (h *HybridKEM) GenerateKeyPair() (*KeyPair, error) {
	x, err := h.classical.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	defer x.Zeroize()

	pq, err := h.pq.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	defer pq.Zeroize()

	return &KeyPair{
		PublicKey: concat(x.PublicKey, pq.PublicKey),
		SecretKey: concat(x.SecretKey, pq.SecretKey),
	}, nil
}

// Encapsulate encapsulates to both components and combines the secrets.
func (h *HybridKEM) Encapsulate(publicKey []byte) (*Encapsulation, error) {
	if len(publicKey) <= constants.X25519PublicKeySize {
		return nil, qerrors.NewCryptoError("HybridKEM.Encapsulate", qerrors.ErrInvalidPublicKey)
	}
	xpk, pqpk := publicKey[:constants.X25519PublicKeySize], publicKey[constants.X25519PublicKeySize:]

	x, err := h.classical.Encapsulate(xpk)
	if err != nil {
		return nil, err
	}
	defer x.Zeroize()

	pq, err := h.pq.Encapsulate(pqpk)
	if err != nil {
		return nil, err
	}
	defer pq.Zeroize()

	ct := concat(x.Ciphertext, pq.Ciphertext)
	ss, err := combine(x.SharedSecret, pq.SharedSecret, publicKey, ct)
	if err != nil {
		return nil, err
	}
	return &Encapsulation{Ciphertext: ct, SharedSecret: ss}, nil
}

// Decapsulate recovers both component secrets and combines them.
func (h *HybridKEM) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != constants.X25519PublicKeySize+h.pq.CiphertextSize() {
		return nil, qerrors.NewCryptoError("HybridKEM.Decapsulate", qerrors.ErrInvalidCiphertext)
	}
	if len(secretKey) <= constants.X25519PrivateKeySize {
		return nil, qerrors.NewCryptoError("HybridKEM.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	xsk, pqsk := secretKey[:constants.X25519PrivateKeySize], secretKey[constants.X25519PrivateKeySize:]
	xct, pqct := ciphertext[:constants.X25519PublicKeySize], ciphertext[constants.X25519PublicKeySize:]

	xss, err := h.classical.Decapsulate(xsk, xct)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(xss)

	pqss, err := h.pq.Decapsulate(pqsk, pqct)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(pqss)

	pk, err := h.publicKey(xsk, pqsk)
	if err != nil {
		return nil, err
	}
	return combine(xss, pqss, pk, ciphertext)
}

// publicKey rebuilds the combined public key from the secret key. circl's
// ML-KEM secret key embeds the encapsulation key.
func (h *HybridKEM) publicKey(xsk, pqsk []byte) ([]byte, error) {
	x, err := crypto.NewX25519KeyPairFromBytes(xsk)
	if err != nil {
		return nil, qerrors.NewCryptoError("HybridKEM.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	defer x.Zeroize()

	sk, err := h.pq.scheme.UnmarshalBinaryPrivateKey(pqsk)
	if err != nil {
		return nil, qerrors.NewCryptoError("HybridKEM.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	pqpk, err := sk.Public().MarshalBinary()
	if err != nil {
		return nil, qerrors.NewCryptoError("HybridKEM.Decapsulate", err)
	}
	return concat(x.PublicKeyBytes(), pqpk), nil
}

func combine(xss, pqss, pk, ct []byte) ([]byte, error) {
	return crypto.DeriveKeyMultiple(constants.DomainSeparatorHybridKEM,
		[][]byte{xss, pqss, pk, ct}, constants.KEMSharedSecretSize)
}

func concat(a, b []byte) []byte {
	return bytes.Join([][]byte{a, b}, nil)
}
