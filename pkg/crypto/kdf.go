// kdf.go implements the key derivation functions of the vault.
//
// Two constructions are used:
//
// HKDF-SHA256 (RFC 5869) turns a KEM shared secret into the symmetric key of
// a single vault item:
//
//	K_sym = HKDF-SHA256(IKM = shared_secret, salt = none, info = suite_label, L = 32)
//
// The info label is public and fixed ("aes-256-gcm" for the default suite);
// freshness comes entirely from the per-item encapsulation.
//
// SHAKE-256 (FIPS 202) with length-prefixed domain separation is used for
// KEM key confirmation:
//
//	output = SHAKE-256(len(domain) || domain || len(input) || input, L)
//
// Length prefixes are 4-byte big-endian integers to ensure unambiguous parsing.
package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// maxDerivedLen bounds SHAKE output. HKDF-SHA256 is bounded by 255*32 bytes.
const maxDerivedLen = 1 << 20

// HKDF expands secret into n bytes of key material with HKDF-SHA256 and the
// given info label. No salt is used.
func HKDF(secret []byte, info string, n int) ([]byte, error) {
	if n <= 0 || n > 255*sha256.Size {
		return nil, qerrors.NewCryptoError("HKDF", qerrors.ErrInvalidKeySize)
	}

	out := make([]byte, n)
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, qerrors.NewCryptoError("HKDF", err)
	}
	return out, nil
}

// DeriveSymmetricKey derives the 32-byte AEAD key for one vault item from a
// KEM shared secret. The same shared secret and suite always yield the same
// key; distinct shared secrets yield independent keys.
//
// Parameters:
//   - sharedSecret: 32-byte KEM shared secret
//   - suite: the AEAD suite whose label is used as HKDF info
//
// Returns:
//   - key: 32-byte symmetric key
//   - error: Non-nil if the shared secret is malformed or the suite unknown
func DeriveSymmetricKey(sharedSecret []byte, suite constants.CipherSuite) ([]byte, error) {
	if len(sharedSecret) != constants.KEMSharedSecretSize {
		return nil, qerrors.NewCryptoError("DeriveSymmetricKey", qerrors.ErrInvalidKeySize)
	}
	label := suite.KDFLabel()
	if label == "" {
		return nil, qerrors.NewCryptoError("DeriveSymmetricKey", qerrors.ErrUnsupportedCipherSuite)
	}
	return HKDF(sharedSecret, label, constants.SymmetricKeySize)
}

// DeriveKey derives a key using SHAKE-256 with domain separation.
//
// Parameters:
//   - domain: Domain separation string (prevents cross-protocol attacks)
//   - input: Secret input material to derive from
//   - outputLen: Desired output length in bytes
//
// Returns:
//   - derived: The derived key material
//   - error: Non-nil if parameters are invalid
func DeriveKey(domain string, input []byte, outputLen int) ([]byte, error) {
	return DeriveKeyMultiple(domain, [][]byte{input}, outputLen)
}

// DeriveKeyMultiple derives a key from several inputs with domain separation.
// A single input produces exactly the DeriveKey encoding; additional inputs
// are appended, each with its own length prefix.
func DeriveKeyMultiple(domain string, inputs [][]byte, outputLen int) ([]byte, error) {
	if outputLen <= 0 || outputLen > maxDerivedLen {
		return nil, qerrors.NewCryptoError("DeriveKey", qerrors.ErrInvalidKeySize)
	}

	h := sha3.NewShake256()
	lenBuf := make([]byte, 4)

	domainBytes := []byte(domain)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(domainBytes)))
	_, _ = h.Write(lenBuf)
	_, _ = h.Write(domainBytes)

	for _, input := range inputs {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(input)))
		_, _ = h.Write(lenBuf)
		_, _ = h.Write(input)
	}

	output := make([]byte, outputLen)
	_, _ = h.Read(output) // SHAKE256.Read never fails

	return output, nil
}
