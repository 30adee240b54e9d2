package kem

import (
	"sort"
	"strings"

	circlkem "github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/schemes"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// postQuantumSchemes lists the circl schemes accepted by RealKEM. The circl
// registry also contains classical HPKE KEMs, which must not be reported as
// quantum secure.
var postQuantumSchemes = map[string]bool{
	"ml-kem-512":  true,
	"ml-kem-768":  true,
	"ml-kem-1024": true,
	"kyber512":    true,
	"kyber768":    true,
	"kyber1024":   true,
}

// Schemes returns the names of the schemes RealKEM accepts, sorted.
func Schemes() []string {
	var names []string
	for _, s := range schemes.All() {
		if postQuantumSchemes[strings.ToLower(s.Name())] {
			names = append(names, s.Name())
		}
	}
	sort.Strings(names)
	return names
}

// RealKEM is a post-quantum KEM backed by a circl scheme.
//
// ML-KEM decapsulation uses implicit rejection: a mismatched key or a
// corrupted ciphertext yields a pseudorandom secret rather than an error.
// The key-confirmation wrapper applied by New turns that into an explicit
// ErrDecapsulationFailed.
type RealKEM struct {
	scheme circlkem.Scheme
}

// NewRealKEM resolves name in the circl registry (case-insensitive).
func NewRealKEM(name string) (*RealKEM, error) {
	if !postQuantumSchemes[strings.ToLower(name)] {
		return nil, qerrors.NewCryptoError("NewRealKEM "+name, qerrors.ErrUnknownScheme)
	}
	s := schemes.ByName(name)
	if s == nil {
		return nil, qerrors.NewCryptoError("NewRealKEM "+name, qerrors.ErrUnknownScheme)
	}
	return &RealKEM{scheme: s}, nil
}

// Name returns the circl scheme name, e.g. "ML-KEM-768".
func (k *RealKEM) Name() string { return k.scheme.Name() }

// QuantumSecure returns true.
func (k *RealKEM) QuantumSecure() bool { return true }

// CiphertextSize is the size of the raw scheme ciphertext.
func (k *RealKEM) CiphertextSize() int { return k.scheme.CiphertextSize() }

// GenerateKeyPair generates a keypair from the CSPRNG.
func (k *RealKEM) GenerateKeyPair() (*KeyPair, error) {
	pk, sk, err := k.scheme.GenerateKeyPair()
	if err != nil {
		return nil, qerrors.NewCryptoError("RealKEM.GenerateKeyPair", qerrors.ErrKeyGenerationFailed)
	}
	return marshalPair(pk, sk)
}

// DeriveKeyPair deterministically derives a keypair from seed. Used by tests
// and known-answer checks.
func (k *RealKEM) DeriveKeyPair(seed []byte) (*KeyPair, error) {
	if len(seed) != k.scheme.SeedSize() {
		return nil, qerrors.NewCryptoError("RealKEM.DeriveKeyPair", qerrors.ErrInvalidKeySize)
	}
	pk, sk := k.scheme.DeriveKeyPair(seed)
	return marshalPair(pk, sk)
}

func marshalPair(pk circlkem.PublicKey, sk circlkem.PrivateKey) (*KeyPair, error) {
	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return nil, qerrors.NewCryptoError("RealKEM.MarshalPublicKey", err)
	}
	skBytes, err := sk.MarshalBinary()
	if err != nil {
		return nil, qerrors.NewCryptoError("RealKEM.MarshalPrivateKey", err)
	}
	return &KeyPair{PublicKey: pkBytes, SecretKey: skBytes}, nil
}

// Encapsulate produces a fresh ciphertext and shared secret for publicKey.
func (k *RealKEM) Encapsulate(publicKey []byte) (*Encapsulation, error) {
	if len(publicKey) != k.scheme.PublicKeySize() {
		return nil, qerrors.NewCryptoError("RealKEM.Encapsulate", qerrors.ErrInvalidPublicKey)
	}
	pk, err := k.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, qerrors.NewCryptoError("RealKEM.Encapsulate", qerrors.ErrInvalidPublicKey)
	}

	ct, ss, err := k.scheme.Encapsulate(pk)
	if err != nil {
		return nil, qerrors.NewCryptoError("RealKEM.Encapsulate", qerrors.ErrEncapsulationFailed)
	}
	return &Encapsulation{Ciphertext: ct, SharedSecret: ss}, nil
}

// Decapsulate recovers the shared secret from ciphertext.
func (k *RealKEM) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != k.scheme.CiphertextSize() {
		return nil, qerrors.NewCryptoError("RealKEM.Decapsulate", qerrors.ErrInvalidCiphertext)
	}
	if len(secretKey) != k.scheme.PrivateKeySize() {
		return nil, qerrors.NewCryptoError("RealKEM.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	sk, err := k.scheme.UnmarshalBinaryPrivateKey(secretKey)
	if err != nil {
		return nil, qerrors.NewCryptoError("RealKEM.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}

	ss, err := k.scheme.Decapsulate(sk, ciphertext)
	if err != nil {
		return nil, qerrors.NewCryptoError("RealKEM.Decapsulate", qerrors.ErrDecapsulationFailed)
	}
	return ss, nil
}
