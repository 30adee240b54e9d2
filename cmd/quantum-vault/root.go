package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var f globalFlags

	cmd := &cobra.Command{
		Use:   "quantum-vault",
		Short: "Post-quantum hybrid encryption vault",
		Long: `quantum-vault seals secrets with a fresh KEM encapsulation per item.

Each item's key is derived from an ML-KEM shared secret with HKDF-SHA256 and
used once with AES-256-GCM. Only the KEM ciphertext, nonce, tag and ciphertext
are stored. The vault keypair lives in the keys directory (kem_sk.bin,
kem_pk.b64) and is created on first use.

Configuration is read from an optional TOML file, then from the environment
(KEYS_DIR, DATABASE_PATH, ENABLE_PQ, KEM_VARIANT, KEM_SCHEME, CIPHER_SUITE,
LOG_LEVEL, LOG_FORMAT), with a .env file filling in unset variables. Flags
override both.`,
		Example: `
  # Store a secret read from stdin
  echo -n 'hunter2' | quantum-vault encrypt --title forum

  # List and reveal
  quantum-vault list
  quantum-vault decrypt 0b5e...

  # Score a candidate and generate a passphrase
  quantum-vault score 'Aa1!'
  quantum-vault generate --mode passphrase --words 6`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "path to a TOML configuration file")
	pf.StringVar(&f.envFile, "env-file", "", "dotenv file consulted for unset variables (default .env)")
	pf.StringVar(&f.keysDir, "keys-dir", "", "directory holding the vault keypair")
	pf.StringVar(&f.dbPath, "db", "", "path to the record database")
	pf.StringVar(&f.variant, "kem", "", "KEM variant: auto, real, fallback or classical")
	pf.StringVar(&f.scheme, "scheme", "", "post-quantum KEM scheme for the real variant")
	pf.BoolVar(&f.ephemeral, "ephemeral", false, "keep records in memory only")
	pf.BoolVar(&f.jsonOutput, "json", false, "print machine readable JSON")

	cmd.AddCommand(
		newPKCommand(&f),
		newEncryptCommand(&f),
		newListCommand(&f),
		newDecryptCommand(&f),
		newDeleteCommand(&f),
		newGenerateCommand(&f),
		newScoreCommand(&f),
		newSelfTestCommand(&f),
		newServeMetricsCommand(&f),
		newVersionCommand(&f),
	)
	return cmd
}
