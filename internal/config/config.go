package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Store           string
	StateFile       string
	Ledger          string
	PGDSN           string
	PrecisionDigits uint8
	Listen          string
	RPCURL          string
	MaxRetries      int
	RetryBackoff    time.Duration
	Concurrency     int
	LogLevel        string
	LogFile         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that flags and env cannot type-check.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile:
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreFile, StorePostgres)
	}
	if c.PrecisionDigits > 9 {
		return fmt.Errorf("precision-digits %d does not fit in 32 bits", c.PrecisionDigits)
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", StoreFile)
	v.SetDefault("state-file", "./data/pools.json")
	v.SetDefault("ledger", "./data/operations.jsonl")
	v.SetDefault("precision-digits", 6)
	v.SetDefault("listen", ":8080")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("concurrency", 4)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Store:           strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		StateFile:       v.GetString("state-file"),
		Ledger:          v.GetString("ledger"),
		PGDSN:           v.GetString("pg-dsn"),
		PrecisionDigits: uint8(v.GetUint("precision-digits")),
		Listen:          v.GetString("listen"),
		RPCURL:          v.GetString("rpc"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		Concurrency:     v.GetInt("concurrency"),
		LogLevel:        v.GetString("log-level"),
		LogFile:         v.GetString("log-file"),
	}
}
