// Command quantum-vault stores secrets sealed with a post-quantum KEM and
// AES-256-GCM, and scores candidate passwords against classical and quantum
// brute force.
package main

import (
	"os"

	"github.com/awnumar/memguard"
)

func main() {
	// Wipe enclaves on SIGINT as well as on normal exit.
	memguard.CatchInterrupt()

	err := executeWithFang(newRootCommand())
	memguard.Purge()
	if err != nil {
		os.Exit(1)
	}
}
