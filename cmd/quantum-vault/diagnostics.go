package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/kem"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
	"github.com/pzverkov/quantum-vault/pkg/version"
)

// heapLimit is the threshold of the memory health check.
const heapLimit = 512 << 20

type checkResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

func newSelfTestCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run the known-answer tests and a keypair round trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var results []checkResult
			add := func(name string, err error) {
				r := checkResult{Name: name, Passed: err == nil}
				if err != nil {
					r.Error = err.Error()
				}
				results = append(results, r)
			}

			post := crypto.RunPOST()
			var postErr error
			if !post.Passed {
				postErr = fmt.Errorf("%v", post.Errors)
			}
			add("post", postErr)

			var integrityErr error
			if mi := crypto.CheckModuleIntegrity(); !mi.Verified {
				integrityErr = fmt.Errorf("digest %s, expected %s", mi.ActualHash, mi.ExpectedHash)
			}
			add("integrity", integrityErr)

			var rngErr error
			if r := crypto.RNGHealthCheck(); !r.Passed {
				rngErr = r.Error
			}
			add("rng", rngErr)

			a, err := openApp(f, cmd.ErrOrStderr(), false)
			if err != nil {
				add("open", err)
			} else {
				defer a.Close()
				add("keypair", keypairCheck(a))
				add("round-trip", roundTrip(cmd, a))
			}

			failed := 0
			for _, r := range results {
				if !r.Passed {
					failed++
				}
			}

			if f.jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					status := "ok"
					if !r.Passed {
						status = "FAIL: " + r.Error
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-11s %s\n", r.Name, status)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d self-test(s) failed", failed)
			}
			return nil
		},
	}
}

func keypairCheck(a *app) error {
	kp, err := a.keys.EnsureKeyPair()
	if err != nil {
		return err
	}
	defer kp.Zeroize()
	return kem.SelfTest(a.provider, kp)
}

func roundTrip(cmd *cobra.Command, a *app) error {
	msg := []byte("quantum-vault self-test")
	rec, err := a.engine.Encrypt(cmd.Context(), "selftest", msg)
	if err != nil {
		return err
	}
	pt, err := a.engine.Decrypt(cmd.Context(), rec)
	if err != nil {
		return err
	}
	if !bytes.Equal(pt, msg) {
		return errors.New("plaintext mismatch")
	}
	return nil
}

func newServeMetricsCommand(f *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve /metrics, /health, /healthz and /readyz until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(f, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Metrics.Address
			}

			srv := metrics.NewServer(metrics.ServerConfig{
				Collector:        a.collector,
				Version:          version.String(),
				EnablePrometheus: true,
				EnableHealth:     true,
			})
			srv.AddHealthCheck("keystore", a.keys.Ready)
			srv.AddHealthCheck("post", func() error {
				if !crypto.POSTPassed() {
					return errors.New("power-on self-test failed")
				}
				return nil
			})
			srv.AddHealthCheck("integrity", func() error {
				if !crypto.CheckModuleIntegrity().Verified {
					return errors.New("known-answer vectors altered")
				}
				return nil
			})
			srv.AddHealthCheck("memory", metrics.MemoryCheck(heapLimit))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.log.Info("serving metrics", metrics.Fields{"addr": addr})
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from METRICS_ADDR or 127.0.0.1:9090)")
	return cmd
}
