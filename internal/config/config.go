// Package config reads occ settings from the environment.
//
// Command-line flags override these values; see internal/cli.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the environment defaults for every occ command.
type Config struct {
	DB         string     `env:"OCC_DB"          envDefault:"occ.db"`
	Collection string     `env:"OCC_COLLECTION"  envDefault:"default"`
	Schema     string     `env:"OCC_SCHEMA"`
	Definition string     `env:"OCC_DEFINITION"  envDefault:"#Entity"`
	Format     string     `env:"OCC_FORMAT"      envDefault:"text"`
	LogLevel   slog.Level `env:"OCC_LOG_LEVEL"   envDefault:"warn"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks values that have a fixed set of choices.
func (c Config) Validate() error {
	if c.Format != FormatText && c.Format != FormatJSON {
		return fmt.Errorf("invalid format %q: must be %q or %q", c.Format, FormatText, FormatJSON)
	}
	if c.Collection == "" {
		return fmt.Errorf("collection name must not be empty")
	}
	if c.Definition == "" {
		return fmt.Errorf("definition must not be empty")
	}
	return nil
}
