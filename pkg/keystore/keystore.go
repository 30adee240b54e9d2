// Package keystore persists the vault's single KEM keypair.
//
// A FileStore owns one directory holding three blobs:
//
//	kem_sk.bin   raw secret key           (0600)
//	kem_pk.b64   base64 public key        (0600)
//	kem_scheme   provider name, one line  (0600)
//
// The keypair is created lazily on first use. Creation is guarded by an
// in-process mutex and by create-if-absent semantics on disk: every blob is
// fully written to a temporary file and then hard-linked into place, which
// fails if the target already exists. The secret key blob is linked first
// and acts as the commit point; a process that loses the race discards its
// own pair and loads the winner's.
//
// Once loaded, the secret key is kept in a memguard enclave and only copied
// out for the duration of a decapsulation.
package keystore

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/kem"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
)

// Store is the key material collaborator used by the vault engine.
type Store interface {
	EnsureKeyPair() (*kem.KeyPair, error)
	LoadPublicKey() ([]byte, error)
	LoadSecretKey() ([]byte, error)
}

// commitWait bounds how long a loader waits for a concurrent writer that has
// committed the secret key but not yet linked the remaining blobs.
const (
	commitWait     = 2 * time.Second
	commitInterval = 10 * time.Millisecond
)

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *metrics.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.log = l.Named("keystore")
		}
	}
}

// WithCollector counts generated keypairs.
func WithCollector(c *metrics.Collector) Option {
	return func(s *FileStore) {
		s.collector = c
	}
}

// FileStore is a directory-backed Store. It is safe for concurrent use.
type FileStore struct {
	dir       string
	provider  kem.Provider
	log       *metrics.Logger
	collector *metrics.Collector

	genMu sync.Mutex

	mu     sync.RWMutex
	pk     []byte
	sk     *memguard.Enclave
	loaded bool
}

// NewFileStore returns a store rooted at dir for keys of provider. Nothing is
// touched on disk until the keypair is first needed.
func NewFileStore(dir string, provider kem.Provider, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, qerrors.NewKeyStoreError("open", "", errors.New("empty key directory"))
	}
	if provider == nil {
		return nil, qerrors.NewKeyStoreError("open", dir, errors.New("nil kem provider"))
	}
	s := &FileStore{
		dir:      filepath.Clean(dir),
		provider: provider,
		log:      metrics.NullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the key directory.
func (s *FileStore) Dir() string { return s.dir }

// Scheme returns the name of the provider the store is bound to.
func (s *FileStore) Scheme() string { return s.provider.Name() }

// EnsureKeyPair returns the persisted keypair, generating and persisting one
// if none exists. Concurrent callers always observe the same pair. The
// returned SecretKey is a copy; callers should Zeroize the pair when done.
func (s *FileStore) EnsureKeyPair() (*kem.KeyPair, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	pk, err := s.LoadPublicKey()
	if err != nil {
		return nil, err
	}
	sk, err := s.LoadSecretKey()
	if err != nil {
		return nil, err
	}
	return &kem.KeyPair{PublicKey: pk, SecretKey: sk}, nil
}

// LoadPublicKey returns a copy of the public key.
func (s *FileStore) LoadPublicKey() ([]byte, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.pk), nil
}

// LoadSecretKey returns a copy of the secret key taken out of the enclave.
// The caller owns the copy and must zeroize it.
func (s *FileStore) LoadSecretKey() ([]byte, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	enclave := s.sk
	s.mu.RUnlock()
	if enclave == nil {
		return nil, qerrors.NewKeyStoreError("unseal", "", errors.New("store closed"))
	}

	buf, err := enclave.Open()
	if err != nil {
		return nil, qerrors.NewKeyStoreError("unseal", "", err)
	}
	defer buf.Destroy()
	return bytes.Clone(buf.Bytes()), nil
}

// PublicKeyBase64 returns the public key in standard base64, the same text
// stored in kem_pk.b64.
func (s *FileStore) PublicKeyBase64() (string, error) {
	pk, err := s.LoadPublicKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(pk), nil
}

// Ready reports whether the keypair is loaded or loadable. It never generates.
func (s *FileStore) Ready() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	if _, err := os.Stat(s.path(constants.SecretKeyFile)); err != nil {
		return qerrors.NewKeyStoreError("stat", s.path(constants.SecretKeyFile), err)
	}
	return nil
}

// Close drops the cached keypair. The enclave is left for memguard to purge.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pk = nil
	s.sk = nil
	s.loaded = false
	return nil
}

func (s *FileStore) ensure() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()

	s.mu.RLock()
	loaded = s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	pk, sk, err := s.loadOrGenerate()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pk = pk
	s.sk = memguard.NewEnclave(sk)
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// loadOrGenerate returns the on-disk pair, creating it first if absent. The
// returned secret key is wiped by memguard.NewEnclave.
func (s *FileStore) loadOrGenerate() ([]byte, []byte, error) {
	skPath := s.path(constants.SecretKeyFile)
	if _, err := os.Stat(skPath); err == nil {
		return s.load()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, qerrors.NewKeyStoreError("stat", skPath, err)
	}

	if err := os.MkdirAll(s.dir, constants.KeyDirMode); err != nil {
		return nil, nil, qerrors.NewKeyStoreError("mkdir", s.dir, err)
	}

	kp, err := s.provider.GenerateKeyPair()
	if err != nil {
		return nil, nil, qerrors.NewKeyStoreError("generate", "", err)
	}
	if err := kem.SelfTest(s.provider, kp); err != nil {
		kp.Zeroize()
		return nil, nil, qerrors.NewKeyStoreError("generate", "", err)
	}

	won, err := createIfAbsent(skPath, kp.SecretKey)
	if err != nil {
		kp.Zeroize()
		return nil, nil, qerrors.NewKeyStoreError("persist", skPath, err)
	}
	if !won {
		// Another process committed first.
		kp.Zeroize()
		s.log.Debug("keypair created concurrently, loading existing", metrics.Fields{"dir": s.dir})
		return s.load()
	}

	pkText := []byte(base64.StdEncoding.EncodeToString(kp.PublicKey) + "\n")
	// The secret key is committed; leftovers from an interrupted writer are
	// overwritten.
	if err := replaceFile(s.path(constants.PublicKeyFile), pkText); err != nil {
		kp.Zeroize()
		return nil, nil, qerrors.NewKeyStoreError("persist", s.path(constants.PublicKeyFile), err)
	}
	if err := replaceFile(s.path(constants.SchemeFile), []byte(s.provider.Name()+"\n")); err != nil {
		kp.Zeroize()
		return nil, nil, qerrors.NewKeyStoreError("persist", s.path(constants.SchemeFile), err)
	}

	if s.collector != nil {
		s.collector.RecordKeyPairGenerated()
	}
	s.log.Info("generated KEM keypair", metrics.Fields{
		"dir":    s.dir,
		"scheme": s.provider.Name(),
	})
	return kp.PublicKey, kp.SecretKey, nil
}

func (s *FileStore) load() ([]byte, []byte, error) {
	skPath := s.path(constants.SecretKeyFile)
	pkPath := s.path(constants.PublicKeyFile)
	schemePath := s.path(constants.SchemeFile)

	pkText, err := readCommitted(pkPath)
	if err != nil {
		return nil, nil, qerrors.NewKeyStoreError("load", pkPath, err)
	}
	pk, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(pkText)))
	if err != nil {
		return nil, nil, qerrors.NewKeyStoreError("decode", pkPath, err)
	}

	sk, err := os.ReadFile(skPath)
	if err != nil {
		return nil, nil, qerrors.NewKeyStoreError("load", skPath, err)
	}
	if len(sk) == 0 || len(pk) == 0 {
		crypto.Zeroize(sk)
		return nil, nil, qerrors.NewKeyStoreError("load", s.dir, qerrors.ErrInvalidKeySize)
	}

	scheme, err := os.ReadFile(schemePath)
	switch {
	case err == nil:
		if got := strings.TrimSpace(string(scheme)); got != s.provider.Name() {
			crypto.Zeroize(sk)
			return nil, nil, qerrors.NewKeyStoreError("load", schemePath,
				errors.Join(qerrors.ErrSchemeMismatch, errors.New("stored "+got+", configured "+s.provider.Name())))
		}
	case errors.Is(err, fs.ErrNotExist):
		// Stores written before the scheme blob existed: adopt the pair only
		// if it works with the configured provider.
		if err := kem.SelfTest(s.provider, &kem.KeyPair{PublicKey: pk, SecretKey: sk}); err != nil {
			crypto.Zeroize(sk)
			return nil, nil, qerrors.NewKeyStoreError("load", schemePath, errors.Join(qerrors.ErrSchemeMismatch, err))
		}
		if _, err := createIfAbsent(schemePath, []byte(s.provider.Name()+"\n")); err != nil {
			s.log.Warn("could not record kem scheme", metrics.Fields{"path": schemePath, "error": err.Error()})
		}
	default:
		crypto.Zeroize(sk)
		return nil, nil, qerrors.NewKeyStoreError("load", schemePath, err)
	}

	s.log.Debug("loaded KEM keypair", metrics.Fields{"dir": s.dir, "scheme": s.provider.Name()})
	return pk, sk, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// readCommitted reads path, waiting briefly for a writer that has already
// committed the secret key.
func readCommitted(path string) ([]byte, error) {
	deadline := time.Now().Add(commitWait)
	for {
		data, err := os.ReadFile(path)
		if err == nil || !errors.Is(err, fs.ErrNotExist) || time.Now().After(deadline) {
			return data, err
		}
		time.Sleep(commitInterval)
	}
}

func writeTemp(path string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(name)
		return "", err
	}
	if err := tmp.Chmod(constants.KeyFileMode); err != nil {
		return fail(err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// replaceFile atomically replaces path with data.
func replaceFile(path string, data []byte) error {
	tmpName, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// createIfAbsent writes data to a temporary file in the target directory and
// links it to path. It reports false without error if path already exists.
func createIfAbsent(path string, data []byte) (bool, error) {
	tmpName, err := writeTemp(path, data)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmpName)

	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
