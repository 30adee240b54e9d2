// Package errors defines the error taxonomy of the quantum-vault engine.
// Errors carry enough context (operation, record, stage) for operators while
// the rendered messages never include key material or plaintext.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for key storage
var (
	// ErrKeyStoreUnavailable indicates the key directory cannot be read or
	// written, or holds corrupt key material. Fatal to the calling request.
	ErrKeyStoreUnavailable = errors.New("keystore: unavailable")

	// ErrSchemeMismatch indicates the stored keypair belongs to another KEM provider
	ErrSchemeMismatch = errors.New("keystore: stored keypair uses a different kem scheme")
)

// KEM provider failures. Providers wrap these in a CryptoError naming the
// scheme and operation.
var (
	ErrInvalidKeySize      = errors.New("kem: invalid key size")
	ErrInvalidCiphertext   = errors.New("kem: invalid ciphertext")
	ErrKeyGenerationFailed = errors.New("kem: key generation failed")
	ErrEncapsulationFailed = errors.New("kem: encapsulation failed")
	ErrInvalidPublicKey    = errors.New("kem: invalid public key")
	ErrInvalidPrivateKey   = errors.New("kem: invalid private key")
	ErrUnknownScheme       = errors.New("kem: unknown scheme")

	// ErrDecapsulationFailed means the secret key does not match the
	// ciphertext, or the ciphertext was corrupted. A provider never
	// substitutes a random secret for it.
	ErrDecapsulationFailed = errors.New("kem: decapsulation failed")
)

// AEAD failures.
var (
	// ErrAuthenticationFailed means the tag did not verify. No plaintext is
	// returned alongside it.
	ErrAuthenticationFailed   = errors.New("aead: authentication failed")
	ErrInvalidNonce           = errors.New("aead: invalid nonce size")
	ErrInvalidTag             = errors.New("aead: invalid tag size")
	ErrUnsupportedCipherSuite = errors.New("aead: unsupported cipher suite")
)

// Sentinel errors for the vault surface
var (
	// ErrVaultDecryption is the umbrella for every decryption failure
	// reported to callers.
	ErrVaultDecryption = errors.New("vault: decryption failed")

	// ErrVaultEncryption is the umbrella for encryption failures.
	ErrVaultEncryption = errors.New("vault: encryption failed")

	// ErrInvalidStrengthInput marks a degenerate candidate request. Scoring
	// itself never fails; it returns zero entropy instead.
	ErrInvalidStrengthInput = errors.New("strength: invalid input")

	// ErrNotFound indicates a record id is not present in the record store
	ErrNotFound = errors.New("records: not found")
)

// CryptoError names the primitive operation that failed.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// KeyStoreError reports a key storage failure. It always matches
// ErrKeyStoreUnavailable in addition to its cause.
type KeyStoreError struct {
	Op   string // load, generate, persist, ...
	Path string // blob path, may be empty
	Err  error
}

func (e *KeyStoreError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("keystore %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("keystore %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *KeyStoreError) Unwrap() error {
	return e.Err
}

// Is makes every KeyStoreError match ErrKeyStoreUnavailable.
func (e *KeyStoreError) Is(target error) bool {
	return target == ErrKeyStoreUnavailable
}

func NewKeyStoreError(op, path string, err error) *KeyStoreError {
	return &KeyStoreError{Op: op, Path: path, Err: err}
}

// Stage identifies where in the decryption pipeline a failure happened.
type Stage string

// Decryption stages, in pipeline order.
const (
	StageLoadKey     Stage = "load-key"
	StageDecapsulate Stage = "decapsulate"
	StageDerive      Stage = "derive"
	StageOpen        Stage = "open"
	StageEncapsulate Stage = "encapsulate"
	StageSeal        Stage = "seal"
)

// VaultError is what engine callers receive on failure. Its message names
// the record and stage only; the cause is reachable through errors.Is/As for
// trusted callers and must not be forwarded to untrusted consumers.
type VaultError struct {
	RecordID string
	Stage    Stage
	Err      error
	encrypt  bool
}

func (e *VaultError) Error() string {
	verb := "decryption"
	if e.encrypt {
		verb = "encryption"
	}
	if e.RecordID == "" {
		return fmt.Sprintf("vault: %s failed (stage %s)", verb, e.Stage)
	}
	return fmt.Sprintf("vault: %s failed (record %s, stage %s)", verb, e.RecordID, e.Stage)
}

func (e *VaultError) Unwrap() error {
	return e.Err
}

// Is matches the umbrella sentinel for the direction of the failure.
func (e *VaultError) Is(target error) bool {
	if e.encrypt {
		return target == ErrVaultEncryption
	}
	return target == ErrVaultDecryption
}

// NewDecryptionError wraps a decryption failure for record id at stage.
func NewDecryptionError(id string, stage Stage, err error) *VaultError {
	return &VaultError{RecordID: id, Stage: stage, Err: err}
}

// NewEncryptionError wraps an encryption failure at stage.
func NewEncryptionError(stage Stage, err error) *VaultError {
	return &VaultError{Stage: stage, Err: err, encrypt: true}
}

// Is and As forward to the standard errors package so callers importing
// this package under its own name need no second import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
