// Package constants defines cryptographic parameters and storage constants for
// the quantum-vault hybrid encryption engine.
//
// The default configuration pairs ML-KEM-768 (NIST FIPS 203, Category 3) with
// AES-256-GCM. Every vault item gets its own KEM encapsulation, so symmetric
// keys are never shared between items.
package constants

import "strings"

// Identification
const (
	// FormatVersion is the version of the sealed record layout.
	FormatVersion uint16 = 0x0001

	// ProjectName is used in logs, metrics namespaces and tracer names.
	ProjectName = "quantum-vault"
)

// KEM parameters
const (
	// DefaultKEMScheme is the circl scheme name used when none is configured.
	DefaultKEMScheme = "ML-KEM-768"

	// MLKEM768PublicKeySize is the size of an ML-KEM-768 encapsulation key in bytes.
	MLKEM768PublicKeySize = 1184

	// MLKEM768PrivateKeySize is the size of an ML-KEM-768 decapsulation key in bytes.
	MLKEM768PrivateKeySize = 2400

	// MLKEM768CiphertextSize is the size of an ML-KEM-768 ciphertext in bytes.
	MLKEM768CiphertextSize = 1088

	// KEMSharedSecretSize is the shared secret size produced by every provider.
	KEMSharedSecretSize = 32

	// KEMConfirmTagSize is the size of the key-confirmation tag appended to
	// every KEM ciphertext.
	KEMConfirmTagSize = 16

	// FallbackKeySize is the size of the fallback provider's opaque key.
	FallbackKeySize = 32

	// FallbackCiphertextSize is the size of the fallback provider's random ciphertext.
	FallbackCiphertextSize = 32

	// X25519PublicKeySize is the size of X25519 public key in bytes
	X25519PublicKeySize = 32

	// X25519PrivateKeySize is the size of X25519 private key in bytes
	X25519PrivateKeySize = 32

	// X25519SharedSecretSize is the size of the X25519 shared secret in bytes
	X25519SharedSecretSize = 32
)

// Symmetric Encryption Parameters
const (
	// SymmetricKeySize is the size of derived AEAD keys in bytes (256 bits).
	SymmetricKeySize = 32

	// NonceSize is the AEAD nonce size in bytes (96 bits).
	NonceSize = 12

	// TagSize is the AEAD authentication tag size in bytes (128 bits).
	TagSize = 16
)

// Key derivation labels. These are public and fixed; freshness comes from
// the KEM encapsulation, never from the label.
const (
	// KDFLabelAES256GCM is the HKDF info for AES-256-GCM keys.
	KDFLabelAES256GCM = "aes-256-gcm"

	// KDFLabelChaCha20Poly1305 is the HKDF info for ChaCha20-Poly1305 keys.
	KDFLabelChaCha20Poly1305 = "chacha20-poly1305"

	// KDFLabelFallbackKEM is the HKDF info used by the demo-grade fallback KEM.
	KDFLabelFallbackKEM = "fallback-kem"

	// KDFLabelClassicalKEM is the HKDF info used by the X25519 KEM.
	KDFLabelClassicalKEM = "x25519-kem"

	// DomainSeparatorHybridKEM is the SHAKE-256 domain that combines the
	// X25519 and ML-KEM secrets of the hybrid provider.
	DomainSeparatorHybridKEM = "quantum-vault/hybrid-kem"

	// DomainSeparatorKEMConfirm is the SHAKE-256 domain for KEM key confirmation.
	DomainSeparatorKEMConfirm = "quantum-vault/kem-confirm"
)

// Key storage
const (
	// SecretKeyFile holds the raw secret key.
	SecretKeyFile = "kem_sk.bin"

	// PublicKeyFile holds the base64-encoded public key.
	PublicKeyFile = "kem_pk.b64"

	// SchemeFile records which provider produced the stored keypair.
	SchemeFile = "kem_scheme"

	// KeyDirMode is the permission of the key directory.
	KeyDirMode = 0o700

	// KeyFileMode is the permission of every key blob.
	KeyFileMode = 0o600
)

// Strength estimation
const (
	// GuessesPerSecond is the assumed attacker guess rate.
	GuessesPerSecond = 1e10

	// Character class sizes.
	CharsetLower  = 26
	CharsetUpper  = 26
	CharsetDigit  = 10
	CharsetSymbol = 32
)

// CipherSuite identifiers
type CipherSuite uint16

const (
	// CipherSuiteAES256GCM uses AES-256-GCM for symmetric encryption
	CipherSuiteAES256GCM CipherSuite = 0x0001

	// CipherSuiteChaCha20Poly1305 uses ChaCha20-Poly1305 for symmetric encryption
	CipherSuiteChaCha20Poly1305 CipherSuite = 0x0002
)

// String returns a human-readable name for the cipher suite
func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteAES256GCM:
		return "AES-256-GCM"
	case CipherSuiteChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// KDFLabel returns the HKDF info label bound to the suite, or "" if unknown.
func (cs CipherSuite) KDFLabel() string {
	switch cs {
	case CipherSuiteAES256GCM:
		return KDFLabelAES256GCM
	case CipherSuiteChaCha20Poly1305:
		return KDFLabelChaCha20Poly1305
	default:
		return ""
	}
}

// IsSupported returns true if the cipher suite is supported
func (cs CipherSuite) IsSupported() bool {
	return cs == CipherSuiteAES256GCM || cs == CipherSuiteChaCha20Poly1305
}

// IsFIPSApproved returns true if the cipher suite is FIPS 140-3 approved.
// Currently only AES-256-GCM is FIPS approved; ChaCha20-Poly1305 is not.
func (cs CipherSuite) IsFIPSApproved() bool {
	return cs == CipherSuiteAES256GCM
}

// ParseCipherSuite maps a configuration or record label to a suite.
// Both the KDF labels ("aes-256-gcm") and display names ("AES-256-GCM") are
// accepted, case-insensitively.
func ParseCipherSuite(s string) (CipherSuite, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case KDFLabelAES256GCM, "aes256gcm", "aes-gcm":
		return CipherSuiteAES256GCM, true
	case KDFLabelChaCha20Poly1305, "chacha20", "chacha20poly1305":
		return CipherSuiteChaCha20Poly1305, true
	default:
		return 0, false
	}
}
