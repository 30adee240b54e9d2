//go:build fips

package crypto

// FIPSMode reports whether the binary was built with -tags fips. FIPS builds
// refuse ChaCha20-Poly1305 and panic when a self-test fails.
func FIPSMode() bool { return true }
