// aead.go implements Authenticated Encryption with Associated Data (AEAD)
// for vault items.
//
// This package supports two AEAD algorithms:
//   - AES-256-GCM: FIPS-approved, hardware-accelerated on modern CPUs (default)
//   - ChaCha20-Poly1305: High performance without hardware support
//
// Both use a 96-bit nonce and a 128-bit authentication tag. The tag is
// returned detached from the ciphertext so sealed records can store nonce,
// tag and ciphertext as separate fields.
//
// Nonce policy: every Seal draws a fresh random nonce. Each vault item is
// sealed under its own key derived from a fresh KEM encapsulation, so a key
// is used for exactly one Seal and a nonce collision would additionally
// require a shared-secret collision. A random nonce per call keeps this true
// even if a caller seals twice under one key.
//
// Open is fail-closed: the tag is verified before any plaintext is released,
// and on failure no plaintext bytes are returned.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// AEAD represents an authenticated encryption cipher bound to one key.
// It is safe for concurrent use.
type AEAD struct {
	cipher cipher.AEAD
	suite  constants.CipherSuite
}

// NewAEAD creates a new AEAD cipher with the specified suite and key.
//
// Parameters:
//   - suite: CipherSuiteAES256GCM or CipherSuiteChaCha20Poly1305
//   - key: 32-byte encryption key
//
// Returns:
//   - AEAD: The initialized cipher
//   - error: Non-nil if the key size is wrong or suite unsupported
func NewAEAD(suite constants.CipherSuite, key []byte) (*AEAD, error) {
	if len(key) != constants.SymmetricKeySize {
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrInvalidKeySize)
	}
	if FIPSMode() && !suite.IsFIPSApproved() {
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrUnsupportedCipherSuite)
	}

	var aeadCipher cipher.AEAD

	switch suite {
	case constants.CipherSuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}
		aeadCipher, err = cipher.NewGCM(block)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	case constants.CipherSuiteChaCha20Poly1305:
		var err error
		aeadCipher, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	default:
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrUnsupportedCipherSuite)
	}

	return &AEAD{cipher: aeadCipher, suite: suite}, nil
}

// Seal encrypts and authenticates plaintext under a fresh random nonce.
//
// Parameters:
//   - plaintext: Data to encrypt
//   - additionalData: Additional data to authenticate (not encrypted), may be nil
//
// Returns:
//   - ciphertext: encrypted data, same length as plaintext
//   - nonce: the 12-byte nonce used
//   - tag: the 16-byte authentication tag
//   - error: Non-nil if the CSPRNG fails
func (a *AEAD) Seal(plaintext, additionalData []byte) (ciphertext, nonce, tag []byte, err error) {
	nonce = make([]byte, constants.NonceSize)
	if err := SecureRandom(nonce); err != nil {
		return nil, nil, nil, err
	}
	if err := checkNonce(nonce); err != nil {
		return nil, nil, nil, err
	}

	sealed := a.cipher.Seal(nil, nonce, plaintext, additionalData)
	split := len(sealed) - constants.TagSize

	ciphertext = sealed[:split:split]
	tag = sealed[split:]
	return ciphertext, nonce, tag, nil
}

// Open verifies and decrypts a detached-tag ciphertext.
//
// Parameters:
//   - ciphertext: encrypted data without tag
//   - nonce: 12-byte nonce used during Seal
//   - tag: 16-byte authentication tag
//   - additionalData: Must match the additionalData used during Seal
//
// Returns:
//   - plaintext: Decrypted data (nil on any failure)
//   - error: ErrAuthenticationFailed if the tag does not verify
func (a *AEAD) Open(ciphertext, nonce, tag, additionalData []byte) ([]byte, error) {
	if len(nonce) != constants.NonceSize {
		return nil, qerrors.NewCryptoError("Open", qerrors.ErrInvalidNonce)
	}
	if len(tag) != constants.TagSize {
		return nil, qerrors.NewCryptoError("Open", qerrors.ErrInvalidTag)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := a.cipher.Open(sealed[:0], nonce, sealed, additionalData)
	if err != nil {
		Zeroize(sealed)
		return nil, qerrors.ErrAuthenticationFailed
	}

	return plaintext, nil
}

// Suite returns the cipher suite identifier.
func (a *AEAD) Suite() constants.CipherSuite {
	return a.suite
}

// Overhead returns the number of bytes stored alongside the ciphertext:
// nonce size plus authentication tag size.
func (a *AEAD) Overhead() int {
	return constants.NonceSize + a.cipher.Overhead()
}

// Seal is a one-shot helper: it keys a cipher for suite and seals plaintext.
func Seal(suite constants.CipherSuite, key, plaintext, additionalData []byte) (ciphertext, nonce, tag []byte, err error) {
	a, err := NewAEAD(suite, key)
	if err != nil {
		return nil, nil, nil, err
	}
	return a.Seal(plaintext, additionalData)
}

// Open is a one-shot helper: it keys a cipher for suite and opens ciphertext.
func Open(suite constants.CipherSuite, key, ciphertext, nonce, tag, additionalData []byte) ([]byte, error) {
	a, err := NewAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	return a.Open(ciphertext, nonce, tag, additionalData)
}
