// Package version reports the quantum-vault release and the VCS state the
// binary was built from.
package version

import (
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

// Semantic version components.
const (
	// Major is the major version (breaking changes).
	Major = 0
	// Minor is the minor version (new features).
	Minor = 1
	// Patch is the patch version (bug fixes).
	Patch = 0
	// Label is the optional pre-release label.
	Label = ""
)

// Name is the product name printed by the CLI.
const Name = "Quantum-Vault"

// String returns the release version string.
func String() string {
	v := fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch)
	if Label != "" {
		v += "-" + Label
	}
	return v
}

// Build returns the VCS revision the binary was built from, or "unknown"
// when no build info is embedded (go run, tests).
func Build() string {
	return versioninfo.Short()
}

// Full returns a descriptive version string.
func Full() string {
	return fmt.Sprintf("%s %s (build %s)", Name, String(), Build())
}
