package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aevon-lab/telemetryd/internal/core/metric"
	"github.com/aevon-lab/telemetryd/internal/pull"
)

const envPrefix = "TELEMETRYD_"

// Config represents the top-level daemon config plus the loaded metric definitions.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Pull     PullConfig     `koanf:"pull"`
	Report   ReportConfig   `koanf:"report"`

	// Definitions is populated by Load from metrics.config_dir.
	Definitions []metric.Definition `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

// SlogLevel maps Level to a slog level. Validate rejects unknown names.
func (c LogConfig) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

type DatabaseConfig struct {
	Enabled      bool   `koanf:"enabled"` // false keeps the archive in memory
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type MetricsConfig struct {
	ConfigDir      string `koanf:"config_dir"`
	RequireMetrics bool   `koanf:"require_metrics"`
	// MaxFutureSkew drops timestamps further than this past the daemon clock.
	MaxFutureSkew time.Duration `koanf:"max_future_skew"`
}

type PullConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Interval      time.Duration `koanf:"interval"`
	SystemPullers []string      `koanf:"system_pullers"`
}

type ReportConfig struct {
	Interval time.Duration `koanf:"interval"`
	// MaxPending caps reports queued for retry after failed saves.
	MaxPending int `koanf:"max_pending"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}

	if c.Database.Enabled {
		if c.Database.Type != "postgres" {
			return fmt.Errorf("unsupported database.type %q", c.Database.Type)
		}
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required when the database is enabled")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	}

	if strings.TrimSpace(c.Metrics.ConfigDir) == "" {
		return fmt.Errorf("metrics.config_dir is required")
	}
	if c.Metrics.MaxFutureSkew <= 0 {
		return fmt.Errorf("metrics.max_future_skew must be > 0")
	}

	if c.Pull.Enabled {
		if c.Pull.Interval <= 0 {
			return fmt.Errorf("pull.interval must be > 0")
		}
		known := pull.SystemPullers()
		for _, name := range c.Pull.SystemPullers {
			if _, ok := known[name]; !ok {
				return fmt.Errorf("unknown pull.system_pullers entry %q", name)
			}
		}
	}

	if c.Report.Interval <= 0 {
		return fmt.Errorf("report.interval must be > 0")
	}
	if c.Report.MaxPending <= 0 {
		return fmt.Errorf("report.max_pending must be > 0")
	}
	return nil
}

// Load parses config from defaults, file and env, validates it, then loads
// the metric definitions.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 1,
		"server.mode":             "release",
		"log.level":               "info",
		"log.format":              "text",
		"database.enabled":        false,
		"database.type":           "postgres",
		"database.dsn":            "",
		"database.max_open_conns": 10,
		"database.max_idle_conns": 5,
		"database.auto_migrate":   true,
		"metrics.config_dir":      "./config/metrics",
		"metrics.require_metrics": true,
		"metrics.max_future_skew": "24h",
		"pull.enabled":            true,
		"pull.interval":           "1m",
		"pull.system_pullers":     []string{},
		"report.interval":         "15m",
		"report.max_pending":      1000,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
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

	repo, err := metric.NewFileSystemRepository(cfg.Metrics.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric definitions: %w", err)
	}
	defs := repo.All()
	if cfg.Metrics.RequireMetrics && len(defs) == 0 {
		return nil, fmt.Errorf("no metric definitions found in %q", cfg.Metrics.ConfigDir)
	}
	cfg.Definitions = defs

	return &cfg, nil
}
