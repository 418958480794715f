package config

import (
	"errors"
	"fmt"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"io/fs"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Payment  PaymentConfig
	Ledger   LedgerConfig

	// Namespace is the root of every storage key and stream topic
	Namespace string `env:"APP_NAMESPACE,default=townmarket"`
	// CurrencyExponent is the number of minor unit digits of API amounts
	CurrencyExponent int32 `env:"APP_CURRENCY_EXPONENT,default=2"`

	SecretKey  string `env:"APP_SECRET_KEY,default=ChangeMe"`
	LogVerbose bool   `env:"APP_VERBOSE,default=0"`
	LogPretty  bool   `env:"APP_PRETTY,default=0"`
}

type ServerConfig struct {
	Listen       string        `env:"RUN_ADDRESS,default=localhost:8088"`
	TimeoutRead  time.Duration `env:"SERVER_TIMEOUT_READ,default=5s"`
	TimeoutWrite time.Duration `env:"SERVER_TIMEOUT_WRITE,default=10s"`
	TimeoutIdle  time.Duration `env:"SERVER_TIMEOUT_IDLE,default=1m"`
	// TimeoutShutdown bounds the drain of open requests and bid streams
	TimeoutShutdown time.Duration `env:"SERVER_TIMEOUT_SHUTDOWN,default=5s"`
}

// DatabaseConfig keeps everything in memory when DSN is empty
type DatabaseConfig struct {
	DSN string `env:"DATABASE_URI,default="`
}

// RedisConfig uses the in-process broker when Addr is empty
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,default="`
	Password string `env:"REDIS_PASSWORD,default="`
	DB       int    `env:"REDIS_DB,default=0"`
}

type PaymentConfig struct {
	RemoteURL string `env:"PAYMENT_GATEWAY_ADDRESS,default=http://127.0.0.1:8090"`
}

type LedgerConfig struct {
	RetryAttempts int           `env:"LEDGER_RETRY_ATTEMPTS,default=25"`
	RetryBackoff  time.Duration `env:"LEDGER_RETRY_BACKOFF,default=0s"`
	Workers       int           `env:"DISPATCHER_WORKERS,default=4"`
}

// New config constructor
func New() Config {
	return Config{}
}

// Load config from environment and from .env file (if exists) and from flags
func (cfg *Config) Load(args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".env load: %w", err)
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("env decode: %w", err)
	}

	flags := pflag.NewFlagSet("townmarket", pflag.ContinueOnError)
	flags.StringVarP(&cfg.Server.Listen, "listen-addr", "a", cfg.Server.Listen, "Server address to listen on")
	flags.StringVarP(&cfg.Database.DSN, "database-uri", "d", cfg.Database.DSN, "Database URI, empty keeps data in memory")
	flags.StringVarP(&cfg.Redis.Addr, "redis-addr", "s", cfg.Redis.Addr, "Redis address, empty uses in-process streams")
	flags.StringVarP(&cfg.Payment.RemoteURL, "payment-url", "r", cfg.Payment.RemoteURL, "Payment gateway base URL")
	flags.StringVarP(&cfg.Namespace, "namespace", "n", cfg.Namespace, "Storage and stream namespace")
	flags.BoolVarP(&cfg.LogVerbose, "verbose", "v", cfg.LogVerbose, "Verbose output")
	flags.BoolVarP(&cfg.LogPretty, "pretty", "p", cfg.LogPretty, "Pretty output")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("flags parse: %w", err)
	}

	return cfg.Validate()
}

// MarshalZerologObject logs the effective setup, secrets left out
func (cfg Config) MarshalZerologObject(e *zerolog.Event) {
	storage := "memory"
	if cfg.Database.DSN != "" {
		storage = "postgres"
	}
	streams := "memory"
	if cfg.Redis.Addr != "" {
		streams = "redis"
	}

	e.Str("namespace", cfg.Namespace).
		Str("listen_address", cfg.Server.Listen).
		Str("storage", storage).
		Str("streams", streams).
		Str("payment_url", cfg.Payment.RemoteURL).
		Int32("currency_exponent", cfg.CurrencyExponent).
		Int("ledger_retry_attempts", cfg.Ledger.RetryAttempts).
		Int("dispatcher_workers", cfg.Ledger.Workers)
	if streams == "redis" {
		e.Str("redis_addr", cfg.Redis.Addr).Int("redis_db", cfg.Redis.DB)
	}
}

func (cfg *Config) Validate() error {
	if cfg.Ledger.RetryAttempts < 1 {
		return fmt.Errorf("ledger retry attempts must be positive, got %d", cfg.Ledger.RetryAttempts)
	}
	if cfg.CurrencyExponent < 0 || cfg.CurrencyExponent > 8 {
		return fmt.Errorf("currency exponent out of range: %d", cfg.CurrencyExponent)
	}
	if cfg.Ledger.Workers < 1 {
		cfg.Ledger.Workers = 1
	}
	return nil
}
