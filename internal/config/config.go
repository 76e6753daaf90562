package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for metricsd.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // "debug" or "release"
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// MetricsConfig holds the metrics engine settings.
type MetricsConfig struct {
	// RuleDir contains one rule-set YAML file per computed column.
	RuleDir string `koanf:"rule_dir"`

	// LayoutPath is the display layout file consumed by the report API.
	LayoutPath string `koanf:"layout_path"`

	// Timezone names the location calendar days are keyed in.
	Timezone string `koanf:"timezone"`

	// RefreshInterval is the periodic scheduler interval.
	RefreshInterval string `koanf:"refresh_interval"`

	// ListenChannel is the Postgres NOTIFY channel that re-triggers a run.
	// Empty disables the listener.
	ListenChannel string `koanf:"listen_channel"`

	// RequireRuleSets fails startup when the rule dir yields zero rule-sets.
	RequireRuleSets bool `koanf:"require_rule_sets"`

	// Scheduled enables the periodic scheduler. The HTTP refresh trigger
	// and the listener work regardless.
	Scheduled bool `koanf:"scheduled"`
}

// Location resolves the configured timezone.
func (c MetricsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid metrics.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}

	if strings.TrimSpace(c.Metrics.RuleDir) == "" {
		return fmt.Errorf("metrics.rule_dir is required")
	}
	if _, err := c.Metrics.Location(); err != nil {
		return err
	}
	interval, err := time.ParseDuration(c.Metrics.RefreshInterval)
	if err != nil {
		return fmt.Errorf("invalid metrics.refresh_interval %q: %w", c.Metrics.RefreshInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("metrics.refresh_interval must be > 0")
	}

	return nil
}

// Load loads the configuration from the given file path and environment
// variables. METRICSD_SERVER__PORT=9090 overrides server.port.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":               8080,
		"server.host":               "0.0.0.0",
		"server.mode":               "release",
		"database.dsn":              "",
		"database.max_open_conns":   25,
		"database.max_idle_conns":   25,
		"database.auto_migrate":     true,
		"metrics.rule_dir":          "./config/metrics",
		"metrics.layout_path":       "./config/layout.yaml",
		"metrics.timezone":          "Local",
		"metrics.refresh_interval":  "2m",
		"metrics.listen_channel":    "metricsd_refresh",
		"metrics.require_rule_sets": true,
		"metrics.scheduled":         true,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("METRICSD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "METRICSD_")), "__", ".", -1)
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
