package extension

import "time"

// Config holds the Till extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.till" or "till" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Seed loads the default catalog and opening drawer on start.
	Seed bool `json:"seed" mapstructure:"seed" yaml:"seed"`

	// Currency is the till currency (default: "inr").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// MaxQuantity caps a single bill line (default: 9999).
	MaxQuantity int64 `json:"max_quantity" mapstructure:"max_quantity" yaml:"max_quantity"`

	// MaxPaymentMultiple rejects payments above this multiple of the
	// grand total (default: 10).
	MaxPaymentMultiple int64 `json:"max_payment_multiple" mapstructure:"max_payment_multiple" yaml:"max_payment_multiple"`

	// LockTimeout bounds the wait for stock and drawer locks (default: 5s).
	LockTimeout time.Duration `json:"lock_timeout" mapstructure:"lock_timeout" yaml:"lock_timeout"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currency:           "inr",
		MaxQuantity:        9999,
		MaxPaymentMultiple: 10,
		LockTimeout:        5 * time.Second,
		PluginTimeout:      5 * time.Second,
	}
}
