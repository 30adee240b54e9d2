package kem

import (
	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// ClassicalName is the provider name of ClassicalKEM.
const ClassicalName = "X25519-DHKEM"

// ClassicalKEM is an ephemeral-static X25519 KEM:
//
//	ct = ephemeral public key
//	ss = HKDF-SHA256(DH(eph, pk) || ct || pk, info = "x25519-kem")
//
// Unlike FallbackKEM the secret key never appears in the public key, but the
// scheme offers no protection against a quantum adversary.
type ClassicalKEM struct{}

// NewClassicalKEM returns the X25519 provider.
func NewClassicalKEM() *ClassicalKEM { return &ClassicalKEM{} }

// Name returns "X25519-DHKEM".
func (ClassicalKEM) Name() string { return ClassicalName }

// QuantumSecure returns false.
func (ClassicalKEM) QuantumSecure() bool { return false }

// GenerateKeyPair generates an X25519 keypair.
func (ClassicalKEM) GenerateKeyPair() (*KeyPair, error) {
	kp, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("ClassicalKEM.GenerateKeyPair", qerrors.ErrKeyGenerationFailed)
	}
	return &KeyPair{PublicKey: kp.PublicKeyBytes(), SecretKey: kp.PrivateKeyBytes()}, nil
}

// Encapsulate performs DH with a fresh ephemeral key.
func (ClassicalKEM) Encapsulate(publicKey []byte) (*Encapsulation, error) {
	recipient, err := crypto.ParseX25519PublicKey(publicKey)
	if err != nil {
		return nil, qerrors.NewCryptoError("ClassicalKEM.Encapsulate", qerrors.ErrInvalidPublicKey)
	}

	eph, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("ClassicalKEM.Encapsulate", qerrors.ErrEncapsulationFailed)
	}
	defer eph.Zeroize()

	dh, err := crypto.X25519(eph.PrivateKey, recipient)
	if err != nil {
		return nil, qerrors.NewCryptoError("ClassicalKEM.Encapsulate", qerrors.ErrEncapsulationFailed)
	}

	ct := eph.PublicKeyBytes()
	ss, err := classicalSecret(dh, ct, publicKey)
	if err != nil {
		return nil, err
	}
	return &Encapsulation{Ciphertext: ct, SharedSecret: ss}, nil
}

// Decapsulate performs DH between the secret key and the ephemeral key in ciphertext.
func (ClassicalKEM) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != constants.X25519PublicKeySize {
		return nil, qerrors.NewCryptoError("ClassicalKEM.Decapsulate", qerrors.ErrInvalidCiphertext)
	}
	kp, err := crypto.NewX25519KeyPairFromBytes(secretKey)
	if err != nil {
		return nil, qerrors.NewCryptoError("ClassicalKEM.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	defer kp.Zeroize()

	eph, err := crypto.ParseX25519PublicKey(ciphertext)
	if err != nil {
		return nil, qerrors.NewCryptoError("ClassicalKEM.Decapsulate", qerrors.ErrInvalidCiphertext)
	}

	dh, err := crypto.X25519(kp.PrivateKey, eph)
	if err != nil {
		// Low-order points produce an all-zero result, which ecdh rejects.
		return nil, qerrors.NewCryptoError("ClassicalKEM.Decapsulate", qerrors.ErrDecapsulationFailed)
	}
	return classicalSecret(dh, ciphertext, kp.PublicKeyBytes())
}

func classicalSecret(dh, ct, pk []byte) ([]byte, error) {
	ikm := make([]byte, 0, len(dh)+len(ct)+len(pk))
	ikm = append(ikm, dh...)
	ikm = append(ikm, ct...)
	ikm = append(ikm, pk...)
	defer crypto.ZeroizeMultiple(ikm, dh)

	return crypto.HKDF(ikm, constants.KDFLabelClassicalKEM, constants.KEMSharedSecretSize)
}
