package keystore

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/kem"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
)

func newProvider(t *testing.T, v kem.Variant) kem.Provider {
	t.Helper()
	p, err := kem.New(v, "")
	require.NoError(t, err)
	return p
}

func TestEnsureKeyPairPersists(t *testing.T) {
	require := require.New(t)

	dir := filepath.Join(t.TempDir(), "keys")
	provider := newProvider(t, kem.VariantReal)
	collector := metrics.NewCollector(nil)

	store, err := NewFileStore(dir, provider, WithCollector(collector))
	require.NoError(err)

	kp, err := store.EnsureKeyPair()
	require.NoError(err)
	require.Len(kp.PublicKey, constants.MLKEM768PublicKeySize)
	require.Len(kp.SecretKey, constants.MLKEM768PrivateKeySize)
	require.EqualValues(1, collector.Snapshot().KeyPairsGenerated)

	info, err := os.Stat(dir)
	require.NoError(err)
	require.Equal(os.FileMode(constants.KeyDirMode), info.Mode().Perm())

	for _, name := range []string{constants.SecretKeyFile, constants.PublicKeyFile, constants.SchemeFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(err, name)
		require.Equal(os.FileMode(constants.KeyFileMode), info.Mode().Perm(), name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, constants.SecretKeyFile))
	require.NoError(err)
	require.Equal(kp.SecretKey, raw)

	text, err := os.ReadFile(filepath.Join(dir, constants.PublicKeyFile))
	require.NoError(err)
	require.Equal(base64.StdEncoding.EncodeToString(kp.PublicKey), strings.TrimSpace(string(text)))

	scheme, err := os.ReadFile(filepath.Join(dir, constants.SchemeFile))
	require.NoError(err)
	require.Equal(provider.Name(), strings.TrimSpace(string(scheme)))

	// A second call returns the cached pair without generating.
	again, err := store.EnsureKeyPair()
	require.NoError(err)
	require.Equal(kp.PublicKey, again.PublicKey)
	require.Equal(kp.SecretKey, again.SecretKey)
	require.EqualValues(1, collector.Snapshot().KeyPairsGenerated)
}

func TestReopenLoadsSamePair(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	provider := newProvider(t, kem.VariantReal)

	first, err := NewFileStore(dir, provider)
	require.NoError(err)
	pk1, err := first.LoadPublicKey()
	require.NoError(err)
	sk1, err := first.LoadSecretKey()
	require.NoError(err)
	require.NoError(first.Close())

	second, err := NewFileStore(dir, provider)
	require.NoError(err)
	pk2, err := second.LoadPublicKey()
	require.NoError(err)
	sk2, err := second.LoadSecretKey()
	require.NoError(err)

	require.Equal(pk1, pk2)
	require.Equal(sk1, sk2)

	// The reloaded pair still agrees on a shared secret.
	enc, err := provider.Encapsulate(pk2)
	require.NoError(err)
	ss, err := provider.Decapsulate(sk2, enc.Ciphertext)
	require.NoError(err)
	require.Equal(enc.SharedSecret, ss)
}

func TestConcurrentEnsureKeyPair(t *testing.T) {
	require := require.New(t)

	store, err := NewFileStore(t.TempDir(), newProvider(t, kem.VariantReal))
	require.NoError(err)

	const workers = 16
	keys := make([][]byte, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kp, err := store.EnsureKeyPair()
			errs[i] = err
			if err == nil {
				keys[i] = kp.PublicKey
			}
		}(i)
	}
	wg.Wait()

	for i := range workers {
		require.NoError(errs[i])
		require.Equal(keys[0], keys[i])
	}
}

func TestConcurrentStoresSameDirectory(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	provider := newProvider(t, kem.VariantFallback)

	const stores = 8
	keys := make([][]byte, stores)
	errs := make([]error, stores)

	var wg sync.WaitGroup
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := NewFileStore(dir, provider)
			if err != nil {
				errs[i] = err
				return
			}
			keys[i], errs[i] = s.LoadPublicKey()
		}(i)
	}
	wg.Wait()

	for i := range stores {
		require.NoError(errs[i])
		require.Equal(keys[0], keys[i])
	}

	raw, err := os.ReadFile(filepath.Join(dir, constants.SecretKeyFile))
	require.NoError(err)
	// pk == sk for the fallback provider.
	require.Equal(keys[0], raw)
}

func TestSchemeMismatch(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	pq, err := NewFileStore(dir, newProvider(t, kem.VariantReal))
	require.NoError(err)
	_, err = pq.EnsureKeyPair()
	require.NoError(err)

	other, err := NewFileStore(dir, newProvider(t, kem.VariantClassical))
	require.NoError(err)
	_, err = other.LoadSecretKey()
	require.Error(err)
	require.ErrorIs(err, qerrors.ErrSchemeMismatch)
	require.ErrorIs(err, qerrors.ErrKeyStoreUnavailable)
}

func TestAdoptsStoreWithoutSchemeBlob(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	provider := newProvider(t, kem.VariantReal)

	kp, err := kem.Unwrap(provider).GenerateKeyPair()
	require.NoError(err)
	require.NoError(os.WriteFile(filepath.Join(dir, constants.SecretKeyFile), kp.SecretKey, 0o600))
	require.NoError(os.WriteFile(filepath.Join(dir, constants.PublicKeyFile),
		[]byte(base64.StdEncoding.EncodeToString(kp.PublicKey)), 0o600))

	store, err := NewFileStore(dir, provider)
	require.NoError(err)
	pk, err := store.LoadPublicKey()
	require.NoError(err)
	require.Equal(kp.PublicKey, pk)

	scheme, err := os.ReadFile(filepath.Join(dir, constants.SchemeFile))
	require.NoError(err)
	require.Equal(provider.Name(), strings.TrimSpace(string(scheme)))
}

func TestRejectsForeignKeysWithoutSchemeBlob(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	// 32-byte keys cannot be an ML-KEM-768 pair.
	key := bytes.Repeat([]byte{0x42}, 32)
	require.NoError(os.WriteFile(filepath.Join(dir, constants.SecretKeyFile), key, 0o600))
	require.NoError(os.WriteFile(filepath.Join(dir, constants.PublicKeyFile),
		[]byte(base64.StdEncoding.EncodeToString(key)), 0o600))

	store, err := NewFileStore(dir, newProvider(t, kem.VariantReal))
	require.NoError(err)
	_, err = store.LoadPublicKey()
	require.ErrorIs(err, qerrors.ErrSchemeMismatch)
}

func TestCorruptPublicKey(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	provider := newProvider(t, kem.VariantFallback)
	store, err := NewFileStore(dir, provider)
	require.NoError(err)
	_, err = store.EnsureKeyPair()
	require.NoError(err)

	require.NoError(os.WriteFile(filepath.Join(dir, constants.PublicKeyFile), []byte("%%% not base64"), 0o600))

	reopened, err := NewFileStore(dir, provider)
	require.NoError(err)
	_, err = reopened.LoadPublicKey()
	require.ErrorIs(err, qerrors.ErrKeyStoreUnavailable)

	var ksErr *qerrors.KeyStoreError
	require.ErrorAs(err, &ksErr)
	require.Equal("decode", ksErr.Op)
}

func TestUnwritableDirectory(t *testing.T) {
	require := require.New(t)

	// A regular file where the directory should be fails even for root.
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(os.WriteFile(parent, []byte("x"), 0o600))

	store, err := NewFileStore(filepath.Join(parent, "keys"), newProvider(t, kem.VariantFallback))
	require.NoError(err)

	_, err = store.EnsureKeyPair()
	require.ErrorIs(err, qerrors.ErrKeyStoreUnavailable)
	require.Error(store.Ready())
}

func TestPublicKeyBase64(t *testing.T) {
	require := require.New(t)

	store, err := NewFileStore(t.TempDir(), newProvider(t, kem.VariantClassical))
	require.NoError(err)

	text, err := store.PublicKeyBase64()
	require.NoError(err)
	pk, err := base64.StdEncoding.DecodeString(text)
	require.NoError(err)
	require.Len(pk, constants.X25519PublicKeySize)
	require.NoError(store.Ready())
}

func TestNewFileStoreValidation(t *testing.T) {
	_, err := NewFileStore("", newProvider(t, kem.VariantFallback))
	require.ErrorIs(t, err, qerrors.ErrKeyStoreUnavailable)

	_, err = NewFileStore(t.TempDir(), nil)
	require.ErrorIs(t, err, qerrors.ErrKeyStoreUnavailable)
}

func TestLoadedSecretKeyIsACopy(t *testing.T) {
	require := require.New(t)

	store, err := NewFileStore(t.TempDir(), newProvider(t, kem.VariantFallback))
	require.NoError(err)

	sk, err := store.LoadSecretKey()
	require.NoError(err)
	want := bytes.Clone(sk)
	for i := range sk {
		sk[i] = 0
	}

	again, err := store.LoadSecretKey()
	require.NoError(err)
	require.Equal(want, again)
}
