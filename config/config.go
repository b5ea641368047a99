/*
config.go - Server configuration

PURPOSE:
  One TOML file configures the HTTP surface, the database, the session
  reaper and the rest-day calendar. Every field has a default, so a
  missing file is not an error.

EXAMPLE:
  [api]
  host = "0.0.0.0"
  port = 8080
  allowed_origins = ["http://localhost:5173"]

  [database]
  path = "attendance.db"

  [sessions]
  idle_timeout = "30m"
  reap_interval = "1m"

  [calendar]
  rest_weekdays = ["sunday"]

PRECEDENCE:
  defaults < file < command-line flags (applied by cmd/server).
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/warp/site-attendance/generic"
)

type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Sessions SessionsConfig `toml:"sessions"`
	Calendar CalendarConfig `toml:"calendar"`
}

type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type SessionsConfig struct {
	IdleTimeout  time.Duration `toml:"idle_timeout"`
	ReapInterval time.Duration `toml:"reap_interval"`
}

type CalendarConfig struct {
	RestWeekdays []string `toml:"rest_weekdays"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		API: APIConfig{
			Host:           "",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Database: DatabaseConfig{Path: "attendance.db"},
		Sessions: SessionsConfig{
			IdleTimeout:  30 * time.Minute,
			ReapInterval: time.Minute,
		},
		Calendar: CalendarConfig{RestWeekdays: []string{"sunday"}},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and names that TOML decoding cannot.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is empty")
	}
	if c.Sessions.IdleTimeout <= 0 || c.Sessions.ReapInterval <= 0 {
		return errors.New("sessions durations must be positive")
	}
	if _, err := c.RestWeekdays(); err != nil {
		return err
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// RestWeekdays parses calendar.rest_weekdays. An empty list means Sunday.
func (c Config) RestWeekdays() ([]time.Weekday, error) {
	if len(c.Calendar.RestWeekdays) == 0 {
		return []time.Weekday{time.Sunday}, nil
	}
	days := make([]time.Weekday, 0, len(c.Calendar.RestWeekdays))
	for _, name := range c.Calendar.RestWeekdays {
		d, ok := generic.ParseWeekday(name)
		if !ok {
			return nil, fmt.Errorf("calendar.rest_weekdays: unknown weekday %q", name)
		}
		days = append(days, d)
	}
	return days, nil
}
