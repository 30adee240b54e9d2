package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

func inWordlist(w string) bool {
	for _, x := range Wordlist {
		if x == w {
			return true
		}
	}
	return false
}

func TestPassphrase(t *testing.T) {
	g := New()

	pp, err := g.Passphrase(5)
	require.NoError(t, err)
	words := strings.Split(pp, "-")
	require.Len(t, words, 5)
	for _, w := range words {
		require.True(t, inWordlist(w), "unexpected word %q", w)
	}

	pp, err = g.Passphrase(0)
	require.NoError(t, err)
	require.Len(t, strings.Split(pp, "-"), MinWords)
}

func TestRandomString(t *testing.T) {
	g := New()

	s, err := g.RandomString(24, false)
	require.NoError(t, err)
	require.Len(t, s, 24)
	for _, r := range s {
		require.True(t, strings.ContainsRune(alphanumeric, r), "unexpected rune %q", r)
	}

	s, err = g.RandomString(3, true)
	require.NoError(t, err)
	require.Len(t, s, MinLength)
	for _, r := range s {
		require.True(t, strings.ContainsRune(alphanumeric+symbols, r))
	}
}

func TestDevKey(t *testing.T) {
	g := New()

	k, err := g.DevKey(80)
	require.NoError(t, err)
	require.Len(t, k, 80)

	k, err = g.DevKey(1)
	require.NoError(t, err)
	require.Len(t, k, MinDevKeyLength)
}

func TestGenerateDefaults(t *testing.T) {
	g := New()

	pp, err := g.Generate(Request{Mode: ModePassphrase})
	require.NoError(t, err)
	require.Len(t, strings.Split(pp, "-"), DefaultWords)

	s, err := g.Generate(Request{Mode: ModeRandom})
	require.NoError(t, err)
	require.Len(t, s, DefaultLength)
	require.NotContains(t, s, " ")

	k, err := g.Generate(Request{Mode: ModeDevKey})
	require.NoError(t, err)
	require.Len(t, k, DefaultDevKey)
}

func TestGenerateInvalidMode(t *testing.T) {
	_, err := New().Generate(Request{Mode: "haiku"})
	require.ErrorIs(t, err, qerrors.ErrInvalidStrengthInput)
}

func TestGenerateIsRandom(t *testing.T) {
	g := New()
	a, err := g.DevKey(64)
	require.NoError(t, err)
	b, err := g.DevKey(64)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" DevKey ")
	require.NoError(t, err)
	require.Equal(t, ModeDevKey, m)

	_, err = ParseMode("")
	require.ErrorIs(t, err, qerrors.ErrInvalidStrengthInput)
}

func TestBuiltinImplementsSource(t *testing.T) {
	var _ Source = New()
}
