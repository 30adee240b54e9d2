// Package metrics provides observability primitives for the quantum-vault
// engine.
//
// The package includes:
//   - A Collector of vault counters and latency histograms backed by a
//     private Prometheus registry
//   - Prometheus exposition through PrometheusExporter
//   - A Tracer interface with in-memory and OpenTelemetry implementations
//   - Structured logging with levels and secret-field redaction
//   - Health checks and an HTTP server for /metrics, /health, /healthz, /readyz
//   - An Observer that ties the above to encrypt, decrypt and KEM calls
//
// # Quick Start
//
//	import "github.com/pzverkov/quantum-vault/pkg/metrics"
//
//	collector := metrics.NewCollector(metrics.Labels{"instance": "vault-1"})
//	observer := metrics.NewObserver(metrics.ObserverConfig{Collector: collector})
//
//	ctx, done := observer.OnEncrypt(ctx, metrics.SpanAttributes{CipherSuite: "AES-256-GCM"})
//	rec, err := seal(ctx)
//	done(err)
//
// # Prometheus
//
// Every collector owns its registry, so tests and multiple engines never
// share counters:
//
//	http.Handle("/metrics", metrics.NewPrometheusExporter(collector).Handler())
//
// Exported metrics use the quantum_vault namespace:
//
//	quantum_vault_encrypts_total
//	quantum_vault_decrypts_total
//	quantum_vault_encrypt_errors_total{stage}
//	quantum_vault_decrypt_errors_total{stage}
//	quantum_vault_auth_failures_total
//	quantum_vault_decapsulation_failures_total
//	quantum_vault_keypairs_generated_total
//	quantum_vault_{encrypt,decrypt}_duration_seconds
//	quantum_vault_kem_{encapsulate,decapsulate}_duration_seconds
//
// # Tracing
//
// Build with -tags otel to forward spans to the global OpenTelemetry
// provider:
//
//	metrics.SetTracer(metrics.NewOTelTracer("quantum-vault"))
//
// Span names: vault.encrypt, vault.decrypt, vault.kem.encapsulate,
// vault.kem.decapsulate, vault.keystore.load, vault.records.*.
//
// # Logging
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelInfo),
//		metrics.WithFormat(metrics.FormatJSON),
//	)
//	logger.Info("item sealed", metrics.Fields{"record_id": id})
//
// Fields named like secret material ("plaintext", "secret_key", ...) are
// written as [REDACTED].
//
// # Health
//
//	server := metrics.NewServer(metrics.ServerConfig{
//		Collector:        collector,
//		Version:          version.Version,
//		EnablePrometheus: true,
//		EnableHealth:     true,
//	})
//	server.AddHealthCheck("keystore", store.Ready)
//	err := server.ListenAndServe(ctx, ":9090")
package metrics
