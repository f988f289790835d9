// Package config handles configuration loading and validation for the
// miner client.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mithril-go/miner/internal/cryptonight"
	"github.com/mithril-go/miner/internal/newrelic"
	"github.com/mithril-go/miner/internal/notify"
)

// Config holds all configuration for the miner process.
type Config struct {
	Pool      PoolConfig             `mapstructure:"pool"`
	Mining    MiningConfig           `mapstructure:"mining"`
	Redis     RedisConfig            `mapstructure:"redis"`
	Webhook   notify.WebhookConfig   `mapstructure:"webhook"`
	API       APIConfig              `mapstructure:"api"`
	NewRelic  newrelic.NewRelicConfig `mapstructure:"newrelic"`
	Profiling ProfilingConfig        `mapstructure:"profiling"`
	Security  SecurityConfig         `mapstructure:"security"`
	Log       LogConfig              `mapstructure:"log"`
}

// PoolConfig defines the upstream pool connection.
type PoolConfig struct {
	Address       string `mapstructure:"address"`
	WalletAddress string `mapstructure:"wallet_address"`
	Password      string `mapstructure:"password"`
}

// MiningConfig defines the hash engine's operating parameters.
type MiningConfig struct {
	Variant     string `mapstructure:"variant"`
	Scratchpads int    `mapstructure:"scratchpads"`
}

// ParsedVariant resolves the configured variant name, defaulting to V7 if
// unset (Validate rejects anything else unparseable).
func (m MiningConfig) ParsedVariant() cryptonight.Variant {
	v, ok := cryptonight.ParseVariant(m.Variant)
	if !ok {
		return cryptonight.V7
	}
	return v
}

// RedisConfig defines the share de-dup cache connection.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// APIConfig defines the local read-only status server.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// ProfilingConfig defines the opt-in pprof server.
type ProfilingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// SecurityConfig defines the submission safety valve (invalid-share ratio
// breaker).
type SecurityConfig struct {
	MaxInvalidShareRatio float64       `mapstructure:"max_invalid_share_ratio"`
	InvalidShareWindow   time.Duration `mapstructure:"invalid_share_window"`
	Cooldown             time.Duration `mapstructure:"cooldown"`
	MinSamples           int           `mapstructure:"min_samples"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/mithril-miner")
	}

	v.SetEnvPrefix("MITHRIL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mining.variant", "v7")
	v.SetDefault("mining.scratchpads", 1)

	v.SetDefault("redis.url", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("webhook.enabled", false)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.bind", "127.0.0.1:4444")

	v.SetDefault("newrelic.enabled", false)

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.bind", "127.0.0.1:6060")

	v.SetDefault("security.max_invalid_share_ratio", 0.5)
	v.SetDefault("security.invalid_share_window", "5m")
	v.SetDefault("security.cooldown", "1m")
	v.SetDefault("security.min_samples", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Pool.Address == "" {
		return fmt.Errorf("pool.address is required")
	}
	if c.Pool.WalletAddress == "" {
		return fmt.Errorf("pool.wallet_address is required")
	}
	if _, ok := cryptonight.ParseVariant(c.Mining.Variant); !ok {
		return fmt.Errorf("mining.variant must be one of v6, v7, v8, got %q", c.Mining.Variant)
	}
	if c.Mining.Scratchpads <= 0 {
		return fmt.Errorf("mining.scratchpads must be > 0")
	}
	if c.Security.MaxInvalidShareRatio <= 0 || c.Security.MaxInvalidShareRatio > 1 {
		return fmt.Errorf("security.max_invalid_share_ratio must be in (0, 1]")
	}
	return nil
}
