package vault

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/generator"
	"github.com/pzverkov/quantum-vault/pkg/kem"
	"github.com/pzverkov/quantum-vault/pkg/records"
)

func newService(t *testing.T, store records.Store, opts ...Option) *Service {
	t.Helper()
	return NewService(newEngine(t, kem.VariantReal, opts...), store, nil)
}

func TestServicePutReveal(t *testing.T) {
	ctx := context.Background()
	bolt, err := records.OpenBolt(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	defer bolt.Close()

	for name, store := range map[string]records.Store{"bolt": bolt, "memory": records.NewMemoryStore()} {
		t.Run(name, func(t *testing.T) {
			s := newService(t, store)

			id, err := s.Put(ctx, "wifi", []byte("correct horse battery staple"))
			require.NoError(t, err)
			require.NotEmpty(t, id)

			pt, err := s.Reveal(ctx, id)
			require.NoError(t, err)
			require.Equal(t, "correct horse battery staple", string(pt))

			_, err = s.Reveal(ctx, "no-such-id")
			require.ErrorIs(t, err, records.ErrNotFound)
			require.NotErrorIs(t, err, qerrors.ErrVaultDecryption)

			require.NoError(t, s.Delete(ctx, id))
			_, err = s.Reveal(ctx, id)
			require.ErrorIs(t, err, records.ErrNotFound)
		})
	}
}

func TestServiceListNewestFirst(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	s := newService(t, records.NewMemoryStore(), WithClock(clock))

	for _, title := range []string{"first", "second", "third"} {
		_, err := s.Put(ctx, title, []byte(title+"-secret"))
		require.NoError(t, err)
	}

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "third", items[0].Title)
	require.Equal(t, "second", items[1].Title)
	require.Equal(t, "first", items[2].Title)
	for _, it := range items {
		require.True(t, it.HasCipher)
		require.NotEmpty(t, it.ID)
	}
}

func TestServiceRevealCorrupted(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	s := newService(t, store)

	id, err := s.Put(ctx, "x", []byte("secret"))
	require.NoError(t, err)

	rec, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, id))
	rec.Ciphertext[0] ^= 1
	require.NoError(t, store.Put(ctx, rec))

	pt, err := s.Reveal(ctx, id)
	require.Nil(t, pt)
	require.ErrorIs(t, err, qerrors.ErrVaultDecryption)
	require.ErrorIs(t, err, qerrors.ErrAuthenticationFailed)
	require.NotContains(t, err.Error(), "secret")
}

func TestServiceGenerate(t *testing.T) {
	s := newService(t, records.NewMemoryStore())

	g, err := s.Generate(generator.Request{Mode: generator.ModePassphrase, Words: 6})
	require.NoError(t, err)
	require.Len(t, strings.Split(g.Password, "-"), 6)
	require.Greater(t, g.Score.EntropyBits, 0.0)
	require.LessOrEqual(t, g.Score.QuantumSeconds, g.Score.ClassicalSeconds)

	g, err = s.Generate(generator.Request{Mode: generator.ModeDevKey})
	require.NoError(t, err)
	require.Len(t, g.Password, generator.DefaultDevKey)

	_, err = s.Generate(generator.Request{})
	require.ErrorIs(t, err, qerrors.ErrInvalidStrengthInput)
	_, err = s.Generate(generator.Request{Mode: "poem"})
	require.ErrorIs(t, err, qerrors.ErrInvalidStrengthInput)
}

func TestGenerateCandidateWithoutKeys(t *testing.T) {
	g, err := GenerateCandidate(fixedSource("Aa1!"), generator.Request{Mode: generator.ModeRandom})
	require.NoError(t, err)
	require.Equal(t, "Aa1!", g.Password)
	require.InDelta(t, 26.22, g.Score.EntropyBits, 0.01)

	_, err = GenerateCandidate(fixedSource("x"), generator.Request{})
	require.ErrorIs(t, err, qerrors.ErrInvalidStrengthInput)
}

type fixedSource string

func (f fixedSource) Generate(generator.Request) (string, error) { return string(f), nil }

func TestServiceCustomSource(t *testing.T) {
	s := NewService(newEngine(t, kem.VariantFallback), records.NewMemoryStore(), fixedSource("Aa1!"))
	g, err := s.Generate(generator.Request{Mode: generator.ModeRandom})
	require.NoError(t, err)
	require.Equal(t, "Aa1!", g.Password)
	require.InDelta(t, 26.22, g.Score.EntropyBits, 0.01)
}
