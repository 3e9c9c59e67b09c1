package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/academy-lab/eventcal/internal/calendar"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Calendar CalendarConfig `koanf:"calendar"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"` // postgres | memory
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type CalendarConfig struct {
	// DefaultTimezone applies to series created without an explicit zone.
	DefaultTimezone string `koanf:"default_timezone"`

	// OrphanedExceptions picks what happens to exceptions whose slot no
	// longer exists after a pattern change: keep | purge | flag.
	OrphanedExceptions string `koanf:"orphaned_exceptions"`

	// UpcomingHorizonDays bounds how far ahead the upcoming feed and the
	// ICS export expand occurrences.
	UpcomingHorizonDays int `koanf:"upcoming_horizon_days"`

	// TemplatesDir optionally extends the built-in event templates with
	// *.yaml files. Empty means built-ins only.
	TemplatesDir string `koanf:"templates_dir"`

	// FeedEnabled exposes the public ICS calendar feed.
	FeedEnabled bool `koanf:"feed_enabled"`
}

// OrphanPolicy resolves the configured policy string.
func (c CalendarConfig) OrphanPolicy() calendar.OrphanPolicy {
	return calendar.OrphanPolicy(c.OrphanedExceptions)
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

	switch c.Database.Type {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	default:
		return fmt.Errorf("unsupported database.type %q (must be postgres or memory)", c.Database.Type)
	}

	if _, err := time.LoadLocation(c.Calendar.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid calendar.default_timezone %q", c.Calendar.DefaultTimezone)
	}
	switch calendar.OrphanPolicy(c.Calendar.OrphanedExceptions) {
	case calendar.OrphanKeep, calendar.OrphanPurge, calendar.OrphanFlag:
	default:
		return fmt.Errorf("invalid calendar.orphaned_exceptions %q (must be keep, purge or flag)", c.Calendar.OrphanedExceptions)
	}
	if c.Calendar.UpcomingHorizonDays <= 0 {
		return fmt.Errorf("calendar.upcoming_horizon_days must be > 0")
	}

	return nil
}

// Load parses config from optional file + env overrides, then validates.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                    8080,
		"server.host":                    "0.0.0.0",
		"server.max_body_size_mb":        1,
		"server.mode":                    "release",
		"database.type":                  "postgres",
		"database.dsn":                   "",
		"database.max_open_conns":        25,
		"database.max_idle_conns":        25,
		"database.auto_migrate":          true,
		"calendar.default_timezone":      calendar.DefaultTimezone,
		"calendar.orphaned_exceptions":   string(calendar.OrphanKeep),
		"calendar.upcoming_horizon_days": 90,
		"calendar.templates_dir":         "",
		"calendar.feed_enabled":          true,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("EVENTCAL_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "EVENTCAL_")), "__", ".", -1)
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
