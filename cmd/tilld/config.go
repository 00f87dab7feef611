package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every variable, e.g. TILL_STORE_DRIVER.
const envPrefix = "till"

// Config is the daemon configuration, read from the environment and an
// optional .env file.
type Config struct {
	HTTPAddr string `split_words:"true" default:":8080"`
	LogLevel string `split_words:"true" default:"info"`

	StoreDriver string `split_words:"true" default:"sqlite"` // memory, sqlite or postgres
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"till.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	Currency           string        `default:"inr"`
	MaxQuantity        int64         `split_words:"true" default:"9999"`
	MaxPaymentMultiple int64         `split_words:"true" default:"10"`
	MaxPieces          int64         `split_words:"true" default:"1000000"`
	LockTimeout        time.Duration `split_words:"true" default:"5s"`
	PluginTimeout      time.Duration `split_words:"true" default:"5s"`
	Seed               bool          `default:"true"`

	RedisAddr     string        `split_words:"true"`
	RedisPassword string        `split_words:"true"`
	CacheTTL      time.Duration `split_words:"true" default:"1m"`

	MongoURI      string `split_words:"true"`
	MongoDatabase string `split_words:"true" default:"till"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"till.events"`

	SMTPAddr     string `envconfig:"SMTP_ADDR"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	MailFrom     string `split_words:"true" default:"billing@localhost"`

	MetricsEnabled bool `split_words:"true" default:"true"`
}

// loadConfig reads .env when present, then the environment.
func loadConfig() (Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case "memory", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("config: TILL_POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	return nil
}

func (c Config) level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
