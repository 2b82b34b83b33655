// Package config loads the engine's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no path is supplied.
const DefaultConfigPath = "config.yaml"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds the database connection settings. The DSN selects
// the backend: postgres URLs open PostgreSQL, anything else opens SQLite.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds optional Redis settings. An empty Addr disables Redis
// and the reset scheduler runs without a cross-replica lease.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Duration is a time.Duration that unmarshals from YAML strings such as
// "2h" or "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if errDecode := value.Decode(&raw); errDecode != nil {
		return errDecode
	}
	parsed, errParse := time.ParseDuration(raw)
	if errParse != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, errParse)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret      string   `yaml:"secret"`
	Expiry      Duration `yaml:"expiry"`
	AdminExpiry Duration `yaml:"admin-expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
	Compress   bool   `yaml:"compress"`
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
}

// ResolveConfigPath returns path or the default when path is empty.
func ResolveConfigPath(path string) string {
	if path == "" {
		return DefaultConfigPath
	}
	return filepath.Clean(path)
}

// Load reads and parses the configuration file, applying defaults for
// unset fields.
func Load(path string) (*Config, error) {
	raw, errRead := os.ReadFile(ResolveConfigPath(path))
	if errRead != nil {
		return nil, fmt.Errorf("config: read: %w", errRead)
	}

	var cfg Config
	if errParse := yaml.Unmarshal(raw, &cfg); errParse != nil {
		return nil, fmt.Errorf("config: parse: %w", errParse)
	}
	cfg.applyDefaults()

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("config: database.dsn is required")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8318"
	}
	if c.JWT.Expiry <= 0 {
		c.JWT.Expiry = Duration(24 * time.Hour)
	}
	if c.JWT.AdminExpiry <= 0 {
		c.JWT.AdminExpiry = Duration(12 * time.Hour)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}
}
