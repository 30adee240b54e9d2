// Package config loads the quantum-vault configuration.
//
// Settings are resolved in three layers, later layers winning:
//
//  1. built-in defaults
//  2. a TOML file (optional)
//  3. environment variables, with a .env file filling in any variable the
//     process environment does not set
//
// Example file:
//
//	[Keys]
//	  Dir = "/var/lib/quantum-vault/keys"
//	  Variant = "real"
//	  Scheme = "ML-KEM-768"
//
//	[Database]
//	  Path = "/var/lib/quantum-vault/vault.db"
//
//	[Crypto]
//	  Suite = "aes-256-gcm"
//	  BindTitle = false
//
//	[Logging]
//	  Level = "info"
//	  Format = "json"
//
//	[Metrics]
//	  Address = "127.0.0.1:9090"
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/pzverkov/quantum-vault/internal/constants"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/kem"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
)

// Defaults.
const (
	DefaultKeysDir        = "keys"
	DefaultDatabasePath   = "vault.db"
	DefaultSuite          = constants.KDFLabelAES256GCM
	DefaultMetricsAddress = "127.0.0.1:9090"
	DefaultEnvFile        = ".env"
)

// Environment variables.
const (
	EnvKeysDir      = "KEYS_DIR"
	EnvDatabasePath = "DATABASE_PATH"
	EnvEnablePQ     = "ENABLE_PQ"
	EnvKEMVariant   = "KEM_VARIANT"
	EnvKEMScheme    = "KEM_SCHEME"
	EnvCipherSuite  = "CIPHER_SUITE"
	EnvBindTitle    = "BIND_TITLE"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvLogColor     = "LOG_COLOR"
	EnvMetricsAddr  = "METRICS_ADDR"
)

// Keys configures the keystore and KEM provider.
type Keys struct {
	// Dir holds kem_sk.bin, kem_pk.b64 and kem_scheme.
	Dir string
	// Variant is one of auto, real, fallback, classical, hybrid.
	Variant string
	// Scheme is the circl KEM scheme used by the real variant.
	Scheme string
}

// Database configures the record store.
type Database struct {
	Path string
	// Ephemeral keeps records in memory only.
	Ephemeral bool
}

// Crypto configures the AEAD layer.
type Crypto struct {
	Suite string
	// BindTitle authenticates the record title as associated data.
	BindTitle bool
}

// Logging configures the logger.
type Logging struct {
	Level  string
	Format string
	// Color renders text-format levels with ANSI colors.
	Color bool
}

// Metrics configures the metrics and health endpoint.
type Metrics struct {
	Address string
}

// Config is the top level configuration.
type Config struct {
	Keys     Keys
	Database Database
	Crypto   Crypto
	Logging  Logging
	Metrics  Metrics

	variant kem.Variant
	suite   constants.CipherSuite
	level   metrics.Level
	format  metrics.Format
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := new(Config)
	if err := cfg.FixupAndValidate(); err != nil {
		panic(err)
	}
	return cfg
}

// FixupAndValidate applies defaults to unset fields and rejects invalid
// values.
func (cfg *Config) FixupAndValidate() error {
	if cfg.Keys.Dir == "" {
		cfg.Keys.Dir = DefaultKeysDir
	}
	if cfg.Keys.Scheme == "" {
		cfg.Keys.Scheme = constants.DefaultKEMScheme
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
	if cfg.Crypto.Suite == "" {
		cfg.Crypto.Suite = DefaultSuite
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = DefaultMetricsAddress
	}

	var err error
	if cfg.variant, err = kem.ParseVariant(cfg.Keys.Variant); err != nil {
		return fmt.Errorf("config: Keys.Variant: %w", err)
	}
	cfg.Keys.Variant = string(cfg.variant)

	suite, ok := constants.ParseCipherSuite(cfg.Crypto.Suite)
	if !ok {
		return fmt.Errorf("config: Crypto.Suite: unknown suite %q", cfg.Crypto.Suite)
	}
	if crypto.FIPSMode() && !suite.IsFIPSApproved() {
		return fmt.Errorf("config: Crypto.Suite: %s is not allowed in FIPS mode", suite)
	}
	cfg.suite = suite

	if cfg.level, err = metrics.ParseLevelStrict(cfg.Logging.Level); err != nil {
		return fmt.Errorf("config: Logging.Level: %w", err)
	}
	if cfg.format, err = metrics.ParseFormat(cfg.Logging.Format); err != nil {
		return fmt.Errorf("config: Logging.Format: %w", err)
	}
	return nil
}

// Variant returns the validated KEM variant.
func (cfg *Config) Variant() kem.Variant { return cfg.variant }

// Suite returns the validated AEAD suite.
func (cfg *Config) Suite() constants.CipherSuite { return cfg.suite }

// NewLogger builds the logger described by the Logging section.
func (cfg *Config) NewLogger(w io.Writer) *metrics.Logger {
	return metrics.NewLogger(
		metrics.WithOutput(w),
		metrics.WithLevel(cfg.level),
		metrics.WithFormat(cfg.format),
		metrics.WithColor(cfg.Logging.Color && cfg.format == metrics.FormatText),
		metrics.WithName(constants.ProjectName),
	)
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Resolve builds the effective configuration: defaults, then the TOML file
// at path (skipped when empty), then environment overrides. envFile names a
// dotenv file consulted for variables missing from the process environment;
// a missing DefaultEnvFile is ignored, any other missing file is an error.
func Resolve(path, envFile string) (*Config, error) {
	cfg := new(Config)
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}

	lookup := LookupFunc(os.LookupEnv)
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := godotenv.Read(envFile)
	switch {
	case err == nil:
		lookup = chain(os.LookupEnv, mapLookup(dotenv))
	case errors.Is(err, fs.ErrNotExist) && envFile == DefaultEnvFile:
	default:
		return nil, fmt.Errorf("config: %s: %w", envFile, err)
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. KEM_VARIANT wins
// over the ENABLE_PQ switch when both are set.
func (cfg *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str(EnvKeysDir, &cfg.Keys.Dir)
	str(EnvDatabasePath, &cfg.Database.Path)
	str(EnvKEMScheme, &cfg.Keys.Scheme)
	str(EnvCipherSuite, &cfg.Crypto.Suite)
	str(EnvLogLevel, &cfg.Logging.Level)
	str(EnvLogFormat, &cfg.Logging.Format)
	str(EnvMetricsAddr, &cfg.Metrics.Address)
	if err := boolean(EnvBindTitle, &cfg.Crypto.BindTitle); err != nil {
		return err
	}
	if err := boolean(EnvLogColor, &cfg.Logging.Color); err != nil {
		return err
	}

	var pq *bool
	if v, ok := lookup(EnvEnablePQ); ok && v != "" {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvEnablePQ, err)
		}
		pq = &b
	}
	switch v, ok := lookup(EnvKEMVariant); {
	case ok && v != "":
		cfg.Keys.Variant = v
	case pq != nil && *pq:
		cfg.Keys.Variant = string(kem.VariantReal)
	case pq != nil:
		cfg.Keys.Variant = string(kem.VariantFallback)
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(v)
}

func mapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func chain(fns ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, fn := range fns {
			if v, ok := fn(key); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
}
