// Package config loads the YAML service configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, e.g. ":8080".
}

// DatabaseConfig holds the storage DSN.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite path or PostgreSQL DSN.
}

// RedisConfig enables the cross-instance realtime bridge when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether the bridge should be started.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TTLHours int    `yaml:"ttl_hours"`
}

// TTL returns the configured session lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.TTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(j.TTLHours) * time.Hour
}

// SnapshotConfig controls the background compactor.
type SnapshotConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"` // Compaction cadence; 0 means 5 minutes.
	Keep            int `yaml:"keep"`             // Snapshots retained per frame; 0 means 3.
}

// Interval returns the compaction cadence.
func (s SnapshotConfig) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Retain returns the number of snapshots kept per frame.
func (s SnapshotConfig) Retain() int {
	if s.Keep <= 0 {
		return 3
	}
	return s.Keep
}

// LoggingConfig controls logrus output and optional file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`        // trace..panic; empty means info.
	File       string `yaml:"file"`         // Log file path; empty means stderr only.
	MaxSizeMB  int    `yaml:"max_size_mb"`  // Rotation threshold; 0 means 100.
	MaxBackups int    `yaml:"max_backups"`  // Rotated files kept; 0 means 3.
	MaxAgeDays int    `yaml:"max_age_days"` // Retention in days; 0 means 28.
}

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "pixelframe.yaml"

// ResolveConfigPath returns path or the default when empty.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultConfigPath
	}
	return trimmed
}

// Load reads and parses the configuration file, applying defaults for
// anything left unset.
func Load(path string) (Config, error) {
	cfg := Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{DSN: "pixelframe.db"},
	}

	data, errRead := os.ReadFile(ResolveConfigPath(path))
	switch {
	case errRead == nil:
		if errParse := yaml.Unmarshal(data, &cfg); errParse != nil {
			return Config{}, fmt.Errorf("config: parse: %w", errParse)
		}
	case os.IsNotExist(errRead) && strings.TrimSpace(path) == "":
		// Missing default file: run on defaults, but jwt.secret has no safe
		// default and is still required below.
	default:
		return Config{}, fmt.Errorf("config: read: %w", errRead)
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		cfg.Database.DSN = "pixelframe.db"
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return Config{}, fmt.Errorf("config: jwt.secret is required")
	}
	return cfg, nil
}
