package main

import (
	"errors"
	"io"

	"github.com/pzverkov/quantum-vault/pkg/config"
	"github.com/pzverkov/quantum-vault/pkg/kem"
	"github.com/pzverkov/quantum-vault/pkg/keystore"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
	"github.com/pzverkov/quantum-vault/pkg/records"
	"github.com/pzverkov/quantum-vault/pkg/vault"
)

// globalFlags are the persistent flags of the root command. Non-empty values
// override the resolved configuration.
type globalFlags struct {
	configFile string
	envFile    string
	keysDir    string
	dbPath     string
	variant    string
	scheme     string
	ephemeral  bool
	jsonOutput bool
}

// app is everything a command needs, built from the resolved configuration.
type app struct {
	cfg       *config.Config
	log       *metrics.Logger
	collector *metrics.Collector
	provider  kem.Provider
	keys      *keystore.FileStore
	records   records.Store
	engine    *vault.Engine
	service   *vault.Service
}

func loadConfig(f *globalFlags) (*config.Config, error) {
	cfg, err := config.Resolve(f.configFile, f.envFile)
	if err != nil {
		return nil, err
	}
	if f.keysDir != "" {
		cfg.Keys.Dir = f.keysDir
	}
	if f.dbPath != "" {
		cfg.Database.Path = f.dbPath
	}
	if f.variant != "" {
		cfg.Keys.Variant = f.variant
	}
	if f.scheme != "" {
		cfg.Keys.Scheme = f.scheme
	}
	if f.ephemeral {
		cfg.Database.Ephemeral = true
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp wires the keystore, engine and, when withRecords is set, the
// record store.
func openApp(f *globalFlags, logOut io.Writer, withRecords bool) (*app, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, err
	}

	log := cfg.NewLogger(logOut)
	metrics.SetLogger(log)
	collector := metrics.NewCollector(nil)
	metrics.SetGlobal(collector)

	var tracer metrics.Tracer = metrics.NoOpTracer{}
	if metrics.OTelEnabled() {
		tracer = metrics.NewOTelTracer("quantum-vault")
		metrics.SetTracer(tracer)
	}

	provider, err := kem.New(cfg.Variant(), cfg.Keys.Scheme, kem.WithLogger(log))
	if err != nil {
		return nil, err
	}

	keys, err := keystore.NewFileStore(cfg.Keys.Dir, provider,
		keystore.WithLogger(log),
		keystore.WithCollector(collector),
	)
	if err != nil {
		return nil, err
	}

	opts := []vault.Option{
		vault.WithSuite(cfg.Suite()),
		vault.WithLogger(log),
		vault.WithCollector(collector),
		vault.WithTracer(tracer),
	}
	if cfg.Crypto.BindTitle {
		opts = append(opts, vault.WithTitleBinding())
	}
	engine, err := vault.New(keys, provider, opts...)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		collector: collector,
		provider:  provider,
		keys:      keys,
		engine:    engine,
	}

	if withRecords {
		if cfg.Database.Ephemeral {
			a.records = records.NewMemoryStore()
		} else {
			bs, err := records.OpenBolt(cfg.Database.Path, records.WithTracer(tracer))
			if err != nil {
				return nil, err
			}
			a.records = bs
		}
		a.service = vault.NewService(engine, a.records, nil)
	}
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.records != nil {
		errs = append(errs, a.records.Close())
	}
	errs = append(errs, a.keys.Close())
	return errors.Join(errs...)
}
