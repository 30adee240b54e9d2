package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	"github.com/pzverkov/quantum-vault/internal/constants"
)

// POSTDomain is the DeriveKey domain used by the KDF known-answer test.
const POSTDomain = "POST-KAT-TEST"

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Known-answer vectors. katDigest is the SHA-256 over katVectors, in order.
var (
	katSecret     = mustHex("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	katKDFOut     = mustHex("f6cd6267523cd5717f431170c2501816d6b1439b1fe8f084cd028e892cff9b6a")
	katHKDFOut    = mustHex("2c7a1d630ce1f00906848445bc4b12d724d876d9faff2521fde7713c610f7ccd")
	katGCMKey     = mustHex("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	katGCMNonce   = mustHex("000000000000000000000000")
	katGCMMessage = []byte(POSTDomain)
	katGCMSealed  = mustHex("5a48b3005aeb1b0a8cd6767b8cded311eb6185c16343d286e3541e9d98")
	katKEMSeed    = mustHex("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef" +
		"fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210")
	katEncapSeed = mustHex("00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")

	katVectors = [][]byte{
		katSecret, katKDFOut, katHKDFOut,
		katGCMKey, katGCMNonce, katGCMMessage, katGCMSealed,
		katKEMSeed, katEncapSeed,
	}
)

const katDigest = "d7356d9db6414d03c75b4d626878fcd0342eb41518bfe83843716080ff5f8a9d"

// POSTResult is the outcome of the power-on self-test. Checks maps each
// known-answer test (kdf, hkdf, aes-gcm, ml-kem) to whether it passed.
type POSTResult struct {
	Passed bool
	Checks map[string]bool
	Errors []string
}

var (
	postOnce   sync.Once
	postResult *POSTResult
)

// RunPOST runs the known-answer tests once per process and returns the
// cached result. It runs from init, so every primitive is checked before the
// first record is sealed. A failure panics in FIPS mode.
func RunPOST() *POSTResult {
	postOnce.Do(func() {
		r := &POSTResult{Passed: true, Checks: map[string]bool{}}
		for _, kat := range []struct {
			name string
			run  func() error
		}{
			{"kdf", kdfKAT},
			{"hkdf", hkdfKAT},
			{"aes-gcm", gcmKAT},
			{"ml-kem", mlkemKAT},
		} {
			err := kat.run()
			r.Checks[kat.name] = err == nil
			if err != nil {
				r.Passed = false
				r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", kat.name, err))
			}
		}
		postResult = r
		if FIPSMode() && !r.Passed {
			panic(fmt.Sprintf("crypto: power-on self-test failed: %v", r.Errors))
		}
	})
	return postResult
}

// POSTRan reports whether RunPOST has completed.
func POSTRan() bool { return postResult != nil }

// POSTPassed reports whether the power-on self-tests ran and all passed.
func POSTPassed() bool { return postResult != nil && postResult.Passed }

func expect(what string, got, want []byte) error {
	if !bytes.Equal(got, want) {
		return fmt.Errorf("%s: got %x, want %x", what, got, want)
	}
	return nil
}

func kdfKAT() error {
	out, err := DeriveKey(POSTDomain, katSecret, 32)
	if err != nil {
		return err
	}
	return expect("DeriveKey", out, katKDFOut)
}

func hkdfKAT() error {
	out, err := DeriveSymmetricKey(katSecret, constants.CipherSuiteAES256GCM)
	if err != nil {
		return err
	}
	return expect("DeriveSymmetricKey", out, katHKDFOut)
}

func gcmKAT() error {
	block, err := aes.NewCipher(katGCMKey)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	sealed := gcm.Seal(nil, katGCMNonce, katGCMMessage, nil) //nolint:gosec // fixed nonce is the test vector
	if err := expect("seal", sealed, katGCMSealed); err != nil {
		return err
	}
	opened, err := gcm.Open(nil, katGCMNonce, sealed, nil)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	return expect("open", opened, katGCMMessage)
}

// mlkemKAT checks that keygen and encapsulation are deterministic in their
// seeds, that sizes match, and that decapsulation recovers the secret.
func mlkemKAT() error {
	scheme := mlkem768.Scheme()
	pk, sk := scheme.DeriveKeyPair(katKEMSeed)
	pk2, _ := scheme.DeriveKeyPair(katKEMSeed)
	if !pk.Equal(pk2) {
		return fmt.Errorf("keygen not deterministic")
	}
	if packed, err := pk.MarshalBinary(); err != nil || len(packed) != constants.MLKEM768PublicKeySize {
		return fmt.Errorf("public key: %d bytes, %v", len(packed), err)
	}

	ct, ss, err := scheme.EncapsulateDeterministically(pk, katEncapSeed)
	if err != nil {
		return err
	}
	if len(ct) != constants.MLKEM768CiphertextSize {
		return fmt.Errorf("ciphertext: %d bytes", len(ct))
	}
	ct2, ss2, err := scheme.EncapsulateDeterministically(pk, katEncapSeed)
	if err != nil {
		return err
	}
	if !bytes.Equal(ct, ct2) || !bytes.Equal(ss, ss2) {
		return fmt.Errorf("encapsulation not deterministic")
	}

	got, err := scheme.Decapsulate(sk, ct)
	if err != nil {
		return err
	}
	return expect("decapsulate", got, ss)
}

// ModuleIntegrity compares the digest of the embedded vectors with the one
// recorded when they were generated.
type ModuleIntegrity struct {
	ExpectedHash string
	ActualHash   string
	Verified     bool
}

// CheckModuleIntegrity reports whether the known-answer vectors are
// unaltered. A mismatch means a passing POST proves nothing.
var CheckModuleIntegrity = sync.OnceValue(func() *ModuleIntegrity {
	h := sha256.New()
	for _, v := range katVectors {
		h.Write(v)
	}
	actual := hex.EncodeToString(h.Sum(nil))
	return &ModuleIntegrity{
		ExpectedHash: katDigest,
		ActualHash:   actual,
		Verified:     actual == katDigest,
	}
})

func init() {
	RunPOST()
}
