// Package extension provides the Forge extension adapter for Till.
//
// It implements the forge.Extension interface to run a till inside a
// Forge application: configuration loading, DI registration of the engine
// and its HTTP handler, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.till" or "till" keys.
package extension

import (
	"context"
	"errors"
	"log/slog"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/till"
	"github.com/xraph/till/api"
	"github.com/xraph/till/seed"
	"github.com/xraph/till/store"
	"github.com/xraph/till/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "till"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Point-of-sale billing with stock, tax and cash-drawer change"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Till as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config   Config
	engine   *till.Till
	handler  *api.Handler
	store    store.Store
	tillOpts []till.Option
	logger   *slog.Logger
}

// New creates a new Till Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Till instance.
// This is nil until Register is called.
func (e *Extension) Engine() *till.Till { return e.engine }

// Handler returns the HTTP handler. This is nil until Register is called.
func (e *Extension) Handler() *api.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration, builds
// the till and registers it and its HTTP handler in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = till.New(e.store, e.buildTillOpts()...)
	e.handler = api.New(e.engine, api.WithLogger(e.logger))

	if err := vessel.Provide(fapp.Container(), func() (*till.Till, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	return vessel.Provide(fapp.Container(), func() (*api.Handler, error) {
		return e.handler, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("till: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	if e.config.Seed {
		if err := seed.Load(ctx, e.engine, e.logger); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("till: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildTillOpts constructs till.Option values from the resolved config.
func (e *Extension) buildTillOpts() []till.Option {
	opts := make([]till.Option, 0, len(e.tillOpts)+6)

	opts = append(opts,
		till.WithLogger(e.logger),
		till.WithCurrency(e.config.Currency),
		till.WithMaxQuantity(e.config.MaxQuantity),
		till.WithMaxPaymentMultiple(e.config.MaxPaymentMultiple),
		till.WithLockTimeout(e.config.LockTimeout),
		till.WithPluginTimeout(e.config.PluginTimeout),
	)
	if e.config.DisableMigrate {
		opts = append(opts, till.WithoutMigrate())
	}

	// Append any pass-through till options.
	opts = append(opts, e.tillOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("till: configuration is required but not found in config files; " +
				"ensure 'extensions.till' or 'till' key exists in your config")
		}
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("till: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("seed", e.config.Seed),
		forge.F("currency", e.config.Currency),
		forge.F("max_quantity", e.config.MaxQuantity),
		forge.F("lock_timeout", e.config.LockTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.till", "till"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("till: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("till: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.MaxQuantity == 0 {
		cfg.MaxQuantity = defaults.MaxQuantity
	}
	if cfg.MaxPaymentMultiple == 0 {
		cfg.MaxPaymentMultiple = defaults.MaxPaymentMultiple
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = defaults.LockTimeout
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML takes precedence; programmatic values fill gaps and bool flags
// override when true.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.Seed {
		yamlConfig.Seed = true
	}
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.MaxQuantity == 0 {
		yamlConfig.MaxQuantity = programmaticConfig.MaxQuantity
	}
	if yamlConfig.MaxPaymentMultiple == 0 {
		yamlConfig.MaxPaymentMultiple = programmaticConfig.MaxPaymentMultiple
	}
	if yamlConfig.LockTimeout == 0 {
		yamlConfig.LockTimeout = programmaticConfig.LockTimeout
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	return e.mergeWithDefaults(yamlConfig)
}
