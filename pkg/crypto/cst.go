// Conditional self-tests run alongside specific operations rather than at
// package load:
//
//   - KEM pairwise consistency: a freshly generated vault keypair must
//     encapsulate and decapsulate to the same non-zero secret before the
//     keystore persists it.
//   - Continuous nonce test: Seal refuses to emit a nonce equal to the one it
//     emitted last.
//   - RNG health check: on demand, from the selftest command.
//
// A failure panics in FIPS builds and is returned as an error otherwise.

package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

// CSTResult is the outcome of one conditional self-test.
type CSTResult struct {
	Passed bool
	Error  error
}

func failed(format string, args ...any) *CSTResult {
	return &CSTResult{Error: fmt.Errorf(format, args...)}
}

// EncapsulateFunc encapsulates against the public half of the keypair under test.
type EncapsulateFunc func() (ciphertext, sharedSecret []byte, err error)

// DecapsulateFunc decapsulates with the secret half of the keypair under test.
type DecapsulateFunc func(ciphertext []byte) ([]byte, error)

// PairwiseConsistencyTestKEM performs one encapsulation and decapsulation.
// The callbacks keep this package independent of the KEM providers.
func PairwiseConsistencyTestKEM(encap EncapsulateFunc, decap DecapsulateFunc) *CSTResult {
	if encap == nil || decap == nil {
		return failed("invalid key pair")
	}

	ct, want, err := encap()
	if err != nil {
		return failed("encapsulation failed: %w", err)
	}
	defer Zeroize(want)

	got, err := decap(ct)
	if err != nil {
		return failed("decapsulation failed: %w", err)
	}
	defer Zeroize(got)

	switch {
	case !ConstantTimeCompare(want, got):
		return failed("shared secrets do not match")
	case IsAllZero(want):
		return failed("shared secret is all zeros")
	}
	return &CSTResult{Passed: true}
}

// RunPairwiseTestKEM runs the pairwise test for the provider called name.
func RunPairwiseTestKEM(name string, encap EncapsulateFunc, decap DecapsulateFunc) error {
	if r := PairwiseConsistencyTestKEM(encap, decap); !r.Passed {
		return cstFailure(fmt.Errorf("%s pairwise consistency test failed: %w", name, r.Error))
	}
	return nil
}

// RNGHealthCheck draws two 32-byte samples and rejects all-zero, constant or
// repeated output.
func RNGHealthCheck() *CSTResult {
	var a, b [32]byte
	if err := SecureRandom(a[:]); err != nil {
		return failed("RNG read failed: %w", err)
	}
	if err := SecureRandom(b[:]); err != nil {
		return failed("RNG read failed: %w", err)
	}

	for i, s := range [][]byte{a[:], b[:]} {
		if IsAllZero(s) {
			return failed("RNG produced all-zero sample %d", i+1)
		}
		if bytes.Count(s, s[:1]) == len(s) {
			return failed("RNG sample %d has no variation", i+1)
		}
	}
	if a == b {
		return failed("RNG produced identical consecutive samples")
	}
	return &CSTResult{Passed: true}
}

// ContinuousTest compares every output with the previous one. The zero value
// is ready to use.
type ContinuousTest struct {
	mu   sync.Mutex
	last []byte
}

// ErrRepeatedOutput is returned by ContinuousTest.Check on a repeat.
var ErrRepeatedOutput = errors.New("crypto: random output repeated")

// Check records out and fails if it equals the previous output.
func (c *ContinuousTest) Check(out []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last != nil && bytes.Equal(c.last, out) {
		return ErrRepeatedOutput
	}
	c.last = append(c.last[:0], out...)
	return nil
}

var nonceTest ContinuousTest

func checkNonce(nonce []byte) error {
	if err := nonceTest.Check(nonce); err != nil {
		return cstFailure(fmt.Errorf("continuous nonce test: %w", err))
	}
	return nil
}

func cstFailure(err error) error {
	if FIPSMode() {
		panic("FIPS CST failed: " + err.Error())
	}
	return err
}
