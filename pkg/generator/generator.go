// Package generator produces candidate secrets for the strength estimator:
// dash-joined passphrases, random strings and developer keys. Every
// character is drawn from crypto/rand.
package generator

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// Mode selects what kind of candidate to produce.
type Mode string

// Supported modes.
const (
	ModePassphrase Mode = "passphrase"
	ModeRandom     Mode = "random"
	ModeDevKey     Mode = "devkey"
)

// Defaults and lower bounds. Requests below a minimum are raised to it.
const (
	DefaultWords    = 4
	MinWords        = 2
	DefaultLength   = 16
	MinLength       = 8
	DefaultDevKey   = 64
	MinDevKeyLength = 32
)

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	symbols      = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// Wordlist is the passphrase vocabulary.
var Wordlist = []string{
	"quantum", "neural", "matrix", "cipher", "secure", "vault", "shield",
	"guardian", "vector", "entropy", "photon", "kernel", "cosmic", "zenith",
	"oracle", "delta", "sigma", "lambda", "tau", "nova", "plasma",
}

// Request describes one candidate. Zero values select the mode defaults.
type Request struct {
	Mode       Mode `json:"mode"`
	Length     int  `json:"length,omitempty"`
	Words      int  `json:"words,omitempty"`
	UseSymbols bool `json:"use_symbols,omitempty"`
}

// Source produces candidate text. Other sources, such as a language model,
// can be plugged in behind the same interface.
type Source interface {
	Generate(req Request) (string, error)
}

// Builtin is the wordlist and random-alphabet Source.
type Builtin struct {
	r io.Reader
}

// New returns a Builtin reading from crypto.Reader.
func New() *Builtin {
	return &Builtin{r: crypto.Reader}
}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePassphrase, ModeRandom, ModeDevKey:
		return m, nil
	default:
		return "", fmt.Errorf("%w: invalid mode %q", qerrors.ErrInvalidStrengthInput, s)
	}
}

// Generate implements Source.
func (b *Builtin) Generate(req Request) (string, error) {
	switch req.Mode {
	case ModePassphrase:
		return b.Passphrase(orDefault(req.Words, DefaultWords))
	case ModeRandom:
		return b.RandomString(orDefault(req.Length, DefaultLength), req.UseSymbols)
	case ModeDevKey:
		return b.DevKey(orDefault(req.Length, DefaultDevKey))
	default:
		return "", fmt.Errorf("%w: invalid mode %q", qerrors.ErrInvalidStrengthInput, req.Mode)
	}
}

// Passphrase joins at least MinWords random words with dashes.
func (b *Builtin) Passphrase(words int) (string, error) {
	words = max(MinWords, words)
	out := make([]string, words)
	for i := range out {
		n, err := b.index(len(Wordlist))
		if err != nil {
			return "", err
		}
		out[i] = Wordlist[n]
	}
	return strings.Join(out, "-"), nil
}

// RandomString returns at least MinLength alphanumerics, with symbols mixed
// into the pool when useSymbols is set.
func (b *Builtin) RandomString(length int, useSymbols bool) (string, error) {
	pool := alphanumeric
	if useSymbols {
		pool += symbols
	}
	return b.draw(pool, max(MinLength, length))
}

// DevKey returns at least MinDevKeyLength alphanumerics.
func (b *Builtin) DevKey(length int) (string, error) {
	return b.draw(alphanumeric, max(MinDevKeyLength, length))
}

func (b *Builtin) draw(pool string, n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		i, err := b.index(len(pool))
		if err != nil {
			return "", err
		}
		sb.WriteByte(pool[i])
	}
	return sb.String(), nil
}

// index returns a uniform integer in [0, n).
func (b *Builtin) index(n int) (int, error) {
	v, err := rand.Int(b.r, big.NewInt(int64(n)))
	if err != nil {
		return 0, qerrors.NewCryptoError("generator", err)
	}
	return int(v.Int64()), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
