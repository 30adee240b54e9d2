// Package quantumvault is a secrets vault built on post-quantum key
// encapsulation.
//
// Every stored item gets its own KEM encapsulation against the vault's
// long-lived keypair. The encapsulated shared secret is expanded with
// HKDF-SHA256 into a single-use AES-256-GCM key, so a record holds only the
// KEM ciphertext, the nonce, the tag and the ciphertext. No symmetric key is
// ever written to disk.
//
// # Quick Start
//
//	provider, _ := kem.New(kem.VariantReal, "ML-KEM-768")
//	keys, _ := keystore.NewFileStore("keys", provider)
//	store, _ := records.OpenBolt("vault.db")
//	engine, _ := vault.New(keys, provider)
//	svc := vault.NewService(engine, store, nil)
//
//	id, _ := svc.Put(ctx, "mail", []byte("hunter2"))
//	secret, _ := svc.Reveal(ctx, id)
//
// # Package Structure
//
//   - pkg/kem: KEM providers (ML-KEM via circl, X25519, the hybrid of both,
//     and a demo-grade fallback) behind one Provider interface
//   - pkg/keystore: keypair persistence (kem_sk.bin, kem_pk.b64)
//   - pkg/vault: the hybrid encryption engine and the item service
//   - pkg/records: sealed record storage (bbolt or memory, CBOR encoded)
//   - pkg/crypto: HKDF, AEAD, random, self-tests
//   - pkg/strength: entropy and brute-force time estimates
//   - pkg/generator: passphrase, random string and developer key generation
//   - pkg/config: TOML, environment and dotenv configuration
//   - pkg/metrics: Prometheus metrics, tracing, logging, health
//   - cmd/quantum-vault: command line
//
// # Security Notes
//
// The fallback provider is NOT an asymmetric scheme: its public key equals
// its secret key. It exists for environments without a working KEM and must
// not protect real secrets. The default variant selects ML-KEM-768 and only
// falls back, with a warning, when the scheme cannot be resolved.
package quantumvault
