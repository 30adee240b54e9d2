// Package crypto holds the primitives under the vault engine: randomness,
// HKDF and SHAKE-256 derivation, detached-tag AEAD, X25519, and the
// power-on and conditional self-tests.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"io"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// Reader is the randomness source for keys, nonces and generated secrets.
var Reader = rand.Reader

// SecureRandom fills b from Reader. An error here means the OS CSPRNG is
// broken and nothing should be sealed.
func SecureRandom(b []byte) error {
	if _, err := io.ReadFull(Reader, b); err != nil {
		return qerrors.NewCryptoError("SecureRandom", err)
	}
	return nil
}

// SecureRandomBytes returns n bytes from Reader.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MustSecureRandomBytes panics where SecureRandomBytes would fail.
func MustSecureRandomBytes(n int) []byte {
	b, err := SecureRandomBytes(n)
	if err != nil {
		panic(err)
	}
	return b
}

// ConstantTimeCompare reports a == b without data-dependent timing on the
// contents. Lengths are not hidden.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// IsAllZero is true for an empty slice.
func IsAllZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}

// Zeroize clears b. Copies made by the runtime are out of reach; the KEM
// secret key lives in a memguard enclave for that reason.
func Zeroize(b []byte) { clear(b) }

// ZeroizeMultiple clears each of bufs.
func ZeroizeMultiple(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
}
