package extension

import (
	"log/slog"
	"time"

	"github.com/xraph/till"
	"github.com/xraph/till/plugin"
	"github.com/xraph/till/store"
)

// Option configures the Till Forge extension.
type Option func(*Extension)

// WithStore sets the store for the till.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithTillOption passes a till.Option through to the underlying engine.
func WithTillOption(opt till.Option) Option {
	return func(e *Extension) {
		e.tillOpts = append(e.tillOpts, opt)
	}
}

// WithPlugin registers a till plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.tillOpts = append(e.tillOpts, till.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithSeed loads the default catalog and drawer on start.
func WithSeed() Option {
	return func(e *Extension) { e.config.Seed = true }
}

// WithCurrency sets the till currency.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithLockTimeout bounds the wait for stock and drawer locks.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.LockTimeout = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithLogger sets the logger handed to the till and its HTTP handler.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}
