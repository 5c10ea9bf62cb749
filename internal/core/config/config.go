package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level configuration for Stride.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Rank     RankConfig     `koanf:"rank"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // "debug" or "release"
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`

	// NativeUpsert selects the atomic ON CONFLICT increment path. Disable it
	// only for stores without upsert support; the fallback is a retried
	// compare-and-swap.
	NativeUpsert bool `koanf:"native_upsert"`
}

// CacheConfig holds the leaderboard cache TTLs. Values are duration strings
// parsed in main.
type CacheConfig struct {
	LocalMaxTTL string `koanf:"local_max_ttl"`
	TopTTL      string `koanf:"top_ttl"`
	MeTTL       string `koanf:"me_ttl"`
}

// RankConfig holds settings for the reward tier tables.
type RankConfig struct {
	ConfigDir string `koanf:"config_dir"`
}

// Load loads the configuration from the given file path and environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 1,
		"server.mode":             "release",
		"database.dsn":            "",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 25,
		"database.auto_migrate":   true,
		"database.native_upsert":  true,
		"cache.local_max_ttl":     "5s",
		"cache.top_ttl":           "15s",
		"cache.me_ttl":            "8s",
		"rank.config_dir":         "./config/rank",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// 2. Load from file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// 3. Load from Environment Variables
	// STRIDE_SERVER__PORT=9090 overrides server.port
	if err := k.Load(env.Provider("STRIDE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "STRIDE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server mode %q (must be debug or release)", c.Server.Mode)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Rank.ConfigDir == "" {
		return fmt.Errorf("rank.config_dir must not be empty")
	}
	return nil
}
