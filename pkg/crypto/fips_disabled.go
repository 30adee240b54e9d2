//go:build !fips

package crypto

// FIPSMode reports whether the binary was built with -tags fips. Standard
// builds allow both AES-256-GCM and ChaCha20-Poly1305.
func FIPSMode() bool { return false }
