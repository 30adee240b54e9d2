package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pzverkov/quantum-vault/pkg/generator"
	"github.com/pzverkov/quantum-vault/pkg/strength"
	"github.com/pzverkov/quantum-vault/pkg/vault"
	"github.com/pzverkov/quantum-vault/pkg/version"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput returns args[0], or stdin when there is no argument or it is "-".
// A single trailing newline from stdin is dropped unless raw is set.
func readInput(cmd *cobra.Command, args []string, raw bool) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		return []byte(args[0]), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	if !raw {
		s := string(b)
		s = strings.TrimSuffix(s, "\n")
		s = strings.TrimSuffix(s, "\r")
		b = []byte(s)
	}
	return b, nil
}

func newPKCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pk",
		Short: "Print the vault public key (base64), creating the keypair if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(f, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.engine.EnsurePublicKey(); err != nil {
				return err
			}
			pk, err := a.keys.PublicKeyBase64()
			if err != nil {
				return err
			}
			if f.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"pk_b64": pk,
					"scheme": a.provider.Name(),
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pk)
			return err
		},
	}
}

func newEncryptCommand(f *globalFlags) *cobra.Command {
	var (
		title string
		raw   bool
	)
	cmd := &cobra.Command{
		Use:   "encrypt [plaintext|-]",
		Short: "Seal a secret and store it",
		Long:  "Seal a secret and store it. The plaintext is read from stdin when omitted or \"-\".",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pt, err := readInput(cmd, args, raw)
			if err != nil {
				return err
			}

			a, err := openApp(f, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.service.Put(cmd.Context(), title, pt)
			if err != nil {
				return err
			}
			if f.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "item title")
	cmd.Flags().BoolVar(&raw, "raw", false, "keep a trailing newline read from stdin")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newListCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(f, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.service.List(cmd.Context())
			if err != nil {
				return err
			}
			if f.jsonOutput {
				return printJSON(cmd.OutOrStdout(), items)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tCREATED")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", it.ID, it.Title, it.CreatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func newDecryptCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <id>",
		Short: "Reveal a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(f, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			pt, err := a.service.Reveal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if f.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{"plaintext": string(pt)})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(pt))
			return err
		},
	}
}

func newDeleteCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(f, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.service.Delete(cmd.Context(), args[0])
		},
	}
}

func printScore(w io.Writer, s strength.Score) {
	fmt.Fprintf(w, "entropy:    %.2f bits (%s)\n", s.EntropyBits, s.Rating)
	fmt.Fprintf(w, "classical:  %.3g s (%s)\n", s.ClassicalSeconds, s.ClassicalHuman)
	fmt.Fprintf(w, "quantum:    %.3g s (%s)\n", s.QuantumSeconds, s.QuantumHuman)
}

func newGenerateCommand(f *globalFlags) *cobra.Command {
	var (
		mode string
		req  generator.Request
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a candidate secret and score it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := generator.ParseMode(mode)
			if err != nil {
				return err
			}
			req.Mode = m

			g, err := vault.GenerateCandidate(generator.New(), req)
			if err != nil {
				return err
			}
			if f.jsonOutput {
				return printJSON(cmd.OutOrStdout(), struct {
					Password string `json:"password"`
					strength.Score
				}{g.Password, g.Score})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, g.Password)
			printScore(w, g.Score)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(generator.ModePassphrase), "passphrase, random or devkey")
	cmd.Flags().IntVarP(&req.Length, "length", "l", 0, "length for random and devkey modes")
	cmd.Flags().IntVarP(&req.Words, "words", "w", 0, "word count for passphrase mode")
	cmd.Flags().BoolVar(&req.UseSymbols, "symbols", false, "include symbols in random mode")
	return cmd
}

func newScoreCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "score [candidate|-]",
		Short: "Estimate entropy and brute-force time of a candidate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args, false)
			if err != nil {
				return err
			}
			s := vault.ScoreCandidate(string(in))
			if f.jsonOutput {
				return printJSON(cmd.OutOrStdout(), s)
			}
			printScore(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newVersionCommand(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": version.String(),
					"build":   version.Build(),
				})
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Full())
			return err
		},
	}
}
