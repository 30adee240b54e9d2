package crypto_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

func TestRandomHelpers(t *testing.T) {
	for _, n := range []int{0, 12, 32, 1184} {
		b, err := crypto.SecureRandomBytes(n)
		if err != nil || len(b) != n {
			t.Fatalf("SecureRandomBytes(%d) = %d bytes, %v", n, len(b), err)
		}
		if n >= 12 && crypto.IsAllZero(b) {
			t.Errorf("%d random bytes were all zero", n)
		}
	}
	if crypto.IsAllZero(crypto.MustSecureRandomBytes(32)) {
		t.Error("MustSecureRandomBytes returned zeros")
	}

	buf := []byte("shared secret")
	other := []byte("derived key")
	crypto.ZeroizeMultiple(buf, other)
	if !crypto.IsAllZero(buf) || !crypto.IsAllZero(other) {
		t.Error("ZeroizeMultiple left data behind")
	}
	if !crypto.IsAllZero(nil) || crypto.IsAllZero([]byte{0, 0, 1}) {
		t.Error("IsAllZero edge cases")
	}

	tag := []byte("0123456789abcdef")
	if !crypto.ConstantTimeCompare(tag, bytes.Clone(tag)) {
		t.Error("equal tags compared unequal")
	}
	if crypto.ConstantTimeCompare(tag, []byte("0123456789abcdeF")) || crypto.ConstantTimeCompare(tag, tag[:8]) {
		t.Error("different tags compared equal")
	}
}

func TestX25519(t *testing.T) {
	vaultKey, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	ephemeral, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}

	sent, err := crypto.X25519(ephemeral.PrivateKey, vaultKey.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	restored, err := crypto.NewX25519KeyPairFromBytes(vaultKey.PrivateKeyBytes())
	if err != nil {
		t.Fatal(err)
	}
	peer, err := crypto.ParseX25519PublicKey(ephemeral.PublicKeyBytes())
	if err != nil {
		t.Fatal(err)
	}
	received, err := crypto.X25519(restored.PrivateKey, peer)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sent, received) || len(sent) != constants.X25519SharedSecretSize {
		t.Error("restored key derived a different secret")
	}
	if !bytes.Equal(restored.PublicKeyBytes(), vaultKey.PublicKeyBytes()) {
		t.Error("restored key has a different public key")
	}
}

func TestX25519Rejects(t *testing.T) {
	if _, err := crypto.ParseX25519PublicKey([]byte("short")); !errors.Is(err, qerrors.ErrInvalidPublicKey) {
		t.Errorf("short public key: %v", err)
	}
	if _, err := crypto.NewX25519KeyPairFromBytes([]byte("short")); !errors.Is(err, qerrors.ErrInvalidKeySize) {
		t.Errorf("short secret: %v", err)
	}
	if _, err := crypto.X25519(nil, nil); !errors.Is(err, qerrors.ErrInvalidPrivateKey) {
		t.Errorf("nil secret: %v", err)
	}

	kp, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := crypto.X25519(kp.PrivateKey, nil); !errors.Is(err, qerrors.ErrInvalidPublicKey) {
		t.Errorf("nil peer: %v", err)
	}
	// Low-order point.
	if low, err := crypto.ParseX25519PublicKey(make([]byte, 32)); err == nil {
		if _, err := crypto.X25519(kp.PrivateKey, low); err == nil {
			t.Error("all-zero peer point accepted")
		}
	}
	kp.Zeroize()
	if kp.PrivateKey != nil || kp.PublicKey != nil {
		t.Error("Zeroize kept key references")
	}
}

// --- KDF Tests ---

func TestDeriveKey(t *testing.T) {
	input := []byte("test input")

	key1, err := crypto.DeriveKey("domain-a", input, 32)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	key2, _ := crypto.DeriveKey("domain-a", input, 32)
	if !bytes.Equal(key1, key2) {
		t.Error("DeriveKey is not deterministic")
	}

	key3, _ := crypto.DeriveKey("domain-b", input, 32)
	if bytes.Equal(key1, key3) {
		t.Error("different domains should give different output")
	}

	for _, n := range []int{0, -1, 1<<20 + 1} {
		if _, err := crypto.DeriveKey("d", input, n); !errors.Is(err, qerrors.ErrInvalidKeySize) {
			t.Errorf("DeriveKey(n=%d) error = %v, want ErrInvalidKeySize", n, err)
		}
	}
}

func TestHKDFBounds(t *testing.T) {
	secret := make([]byte, 32)

	if _, err := crypto.HKDF(secret, "x", 255*32); err != nil {
		t.Errorf("HKDF at max length failed: %v", err)
	}
	for _, n := range []int{0, 255*32 + 1} {
		if _, err := crypto.HKDF(secret, "x", n); !errors.Is(err, qerrors.ErrInvalidKeySize) {
			t.Errorf("HKDF(n=%d) error = %v, want ErrInvalidKeySize", n, err)
		}
	}
}

func TestDeriveSymmetricKeyValidation(t *testing.T) {
	if _, err := crypto.DeriveSymmetricKey(make([]byte, 16), constants.CipherSuiteAES256GCM); !errors.Is(err, qerrors.ErrInvalidKeySize) {
		t.Errorf("short secret: got %v, want ErrInvalidKeySize", err)
	}
	if _, err := crypto.DeriveSymmetricKey(make([]byte, 32), constants.CipherSuite(0x99)); !errors.Is(err, qerrors.ErrUnsupportedCipherSuite) {
		t.Errorf("unknown suite: got %v, want ErrUnsupportedCipherSuite", err)
	}
}

// TestDeriveSymmetricKeyAvalanche flips each bit of the shared secret and
// checks that roughly half of the output bits change.
func TestDeriveSymmetricKeyAvalanche(t *testing.T) {
	secret := crypto.MustSecureRandomBytes(constants.KEMSharedSecretSize)
	base, err := crypto.DeriveSymmetricKey(secret, constants.CipherSuiteAES256GCM)
	if err != nil {
		t.Fatalf("DeriveSymmetricKey failed: %v", err)
	}

	total := 0
	trials := len(secret) * 8
	for bit := 0; bit < trials; bit++ {
		flipped := bytes.Clone(secret)
		flipped[bit/8] ^= 1 << (bit % 8)

		key, err := crypto.DeriveSymmetricKey(flipped, constants.CipherSuiteAES256GCM)
		if err != nil {
			t.Fatalf("DeriveSymmetricKey failed: %v", err)
		}
		d := hammingDistance(base, key)
		if d == 0 {
			t.Fatalf("bit %d flip left the key unchanged", bit)
		}
		total += d
	}

	// 256 output bits, expected mean 128.
	mean := float64(total) / float64(trials)
	if mean < 112 || mean > 144 {
		t.Errorf("mean hamming distance %.1f outside [112, 144]", mean)
	}
}

func hammingDistance(a, b []byte) int {
	n := 0
	for i := range a {
		x := a[i] ^ b[i]
		for x != 0 {
			n += int(x & 1)
			x >>= 1
		}
	}
	return n
}

// --- AEAD Tests ---

func aeadSuites() []constants.CipherSuite {
	if crypto.FIPSMode() {
		return []constants.CipherSuite{constants.CipherSuiteAES256GCM}
	}
	return []constants.CipherSuite{constants.CipherSuiteAES256GCM, constants.CipherSuiteChaCha20Poly1305}
}

func TestAEADSealOpen(t *testing.T) {
	for _, suite := range aeadSuites() {
		t.Run(suite.String(), func(t *testing.T) {
			key := crypto.MustSecureRandomBytes(constants.SymmetricKeySize)
			aead, err := crypto.NewAEAD(suite, key)
			if err != nil {
				t.Fatalf("NewAEAD failed: %v", err)
			}
			if aead.Suite() != suite {
				t.Errorf("Suite() = %v, want %v", aead.Suite(), suite)
			}
			if aead.Overhead() != constants.NonceSize+constants.TagSize {
				t.Errorf("Overhead() = %d, want %d", aead.Overhead(), constants.NonceSize+constants.TagSize)
			}

			plaintext := []byte("hello quantum world")
			ct, nonce, tag, err := aead.Seal(plaintext, nil)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if len(nonce) != constants.NonceSize || len(tag) != constants.TagSize {
				t.Fatalf("nonce/tag sizes %d/%d", len(nonce), len(tag))
			}
			if bytes.Equal(ct, plaintext) {
				t.Error("ciphertext equals plaintext")
			}

			got, err := aead.Open(ct, nonce, tag, nil)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Errorf("Open = %q, want %q", got, plaintext)
			}
		})
	}
}

// TestAEADTamperDetection flips every bit of ciphertext, nonce and tag in turn.
func TestAEADTamperDetection(t *testing.T) {
	for _, suite := range aeadSuites() {
		t.Run(suite.String(), func(t *testing.T) {
			key := crypto.MustSecureRandomBytes(constants.SymmetricKeySize)
			ct, nonce, tag, err := crypto.Seal(suite, key, []byte("attack at dawn"), nil)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}

			fields := []struct {
				name string
				buf  []byte
			}{
				{"ciphertext", ct},
				{"nonce", nonce},
				{"tag", tag},
			}

			for _, f := range fields {
				for bit := 0; bit < len(f.buf)*8; bit++ {
					f.buf[bit/8] ^= 1 << (bit % 8)
					pt, err := crypto.Open(suite, key, ct, nonce, tag, nil)
					f.buf[bit/8] ^= 1 << (bit % 8)

					if !errors.Is(err, qerrors.ErrAuthenticationFailed) {
						t.Fatalf("%s bit %d: error = %v, want ErrAuthenticationFailed", f.name, bit, err)
					}
					if pt != nil {
						t.Fatalf("%s bit %d: plaintext returned on failure", f.name, bit)
					}
				}
			}

			// Untouched record still opens.
			if _, err := crypto.Open(suite, key, ct, nonce, tag, nil); err != nil {
				t.Fatalf("original record no longer opens: %v", err)
			}
		})
	}
}

func TestAEADWrongAAD(t *testing.T) {
	key := crypto.MustSecureRandomBytes(constants.SymmetricKeySize)
	ct, nonce, tag, err := crypto.Seal(constants.CipherSuiteAES256GCM, key, []byte("secret"), []byte("title-a"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, err := crypto.Open(constants.CipherSuiteAES256GCM, key, ct, nonce, tag, []byte("title-b")); !errors.Is(err, qerrors.ErrAuthenticationFailed) {
		t.Errorf("wrong AAD: got %v, want ErrAuthenticationFailed", err)
	}
	if _, err := crypto.Open(constants.CipherSuiteAES256GCM, key, ct, nonce, tag, nil); !errors.Is(err, qerrors.ErrAuthenticationFailed) {
		t.Errorf("missing AAD: got %v, want ErrAuthenticationFailed", err)
	}
}

func TestAEADWrongKey(t *testing.T) {
	key := crypto.MustSecureRandomBytes(constants.SymmetricKeySize)
	other := crypto.MustSecureRandomBytes(constants.SymmetricKeySize)

	ct, nonce, tag, err := crypto.Seal(constants.CipherSuiteAES256GCM, key, []byte("secret"), nil)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := crypto.Open(constants.CipherSuiteAES256GCM, other, ct, nonce, tag, nil); !errors.Is(err, qerrors.ErrAuthenticationFailed) {
		t.Errorf("wrong key: got %v, want ErrAuthenticationFailed", err)
	}
}

func TestAEADInvalidInputs(t *testing.T) {
	key := crypto.MustSecureRandomBytes(constants.SymmetricKeySize)

	if _, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, key[:16]); !errors.Is(err, qerrors.ErrInvalidKeySize) {
		t.Errorf("short key: got %v, want ErrInvalidKeySize", err)
	}
	if _, err := crypto.NewAEAD(constants.CipherSuite(0x9999), key); !errors.Is(err, qerrors.ErrUnsupportedCipherSuite) {
		t.Errorf("unknown suite: got %v, want ErrUnsupportedCipherSuite", err)
	}

	ct, nonce, tag, err := crypto.Seal(constants.CipherSuiteAES256GCM, key, []byte("x"), nil)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := crypto.Open(constants.CipherSuiteAES256GCM, key, ct, nonce[:8], tag, nil); !errors.Is(err, qerrors.ErrInvalidNonce) {
		t.Errorf("short nonce: got %v, want ErrInvalidNonce", err)
	}
	if _, err := crypto.Open(constants.CipherSuiteAES256GCM, key, ct, nonce, tag[:8], nil); !errors.Is(err, qerrors.ErrInvalidTag) {
		t.Errorf("short tag: got %v, want ErrInvalidTag", err)
	}
}

// TestAEADNonceFreshness seals 10 000 times and checks no nonce repeats.
func TestAEADNonceFreshness(t *testing.T) {
	const trials = 10000

	key := crypto.MustSecureRandomBytes(constants.SymmetricKeySize)
	aead, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, key)
	if err != nil {
		t.Fatalf("NewAEAD failed: %v", err)
	}

	seen := make(map[[constants.NonceSize]byte]struct{}, trials)
	for i := 0; i < trials; i++ {
		_, nonce, _, err := aead.Seal([]byte("p"), nil)
		if err != nil {
			t.Fatalf("Seal %d failed: %v", i, err)
		}
		var k [constants.NonceSize]byte
		copy(k[:], nonce)
		if _, dup := seen[k]; dup {
			t.Fatalf("nonce reused after %d seals", i)
		}
		seen[k] = struct{}{}
	}
}

func TestAEADConcurrentSeal(t *testing.T) {
	key := crypto.MustSecureRandomBytes(constants.SymmetricKeySize)
	aead, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, key)
	if err != nil {
		t.Fatalf("NewAEAD failed: %v", err)
	}

	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			pt := []byte("concurrent")
			ct, nonce, tag, err := aead.Seal(pt, nil)
			if err == nil {
				var got []byte
				got, err = aead.Open(ct, nonce, tag, nil)
				if err == nil && !bytes.Equal(got, pt) {
					err = errors.New("plaintext mismatch")
				}
			}
			errs <- err
		}()
	}
	for i := 0; i < 16; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}
