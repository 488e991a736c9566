// Package cliconfig holds the settings for the arena command, gathered from
// flags and an optional TOML file.
package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultDB is the catalogue filename used when none is configured.
const DefaultDB = "arena.db"

// Config holds the command settings.
type Config struct {
	DB      string
	Palette string
	Workers int
	Verbose bool
}

// FileConfig is the TOML representation of Config.
type FileConfig struct {
	DB      string `toml:"db"`
	Palette string `toml:"palette"`
	Workers int    `toml:"workers"`
	Verbose *bool  `toml:"verbose"`
}

// DefaultConfig returns a Config with default values, keeping the
// catalogue in dir.
func DefaultConfig(dir string) Config {
	return Config{
		DB:      filepath.Join(dir, DefaultDB),
		Workers: 10,
	}
}

// DefaultConfigPath returns ~/.arena/config.toml, or an empty string if the
// home directory can't be found.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".arena", "config.toml")
	}
	return ""
}

// LoadFileConfig parses the TOML file at path. A missing file yields an
// empty FileConfig.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}

// Apply copies any values set in fc into cfg, except for those whose flag
// was given explicitly on the command line.
func (fc FileConfig) Apply(cfg *Config, changed map[string]bool) {
	if fc.DB != "" && !changed["db"] {
		cfg.DB = fc.DB
	}
	if fc.Palette != "" && !changed["palette"] {
		cfg.Palette = fc.Palette
	}
	if fc.Workers != 0 && !changed["workers"] {
		cfg.Workers = fc.Workers
	}
	if fc.Verbose != nil && !changed["verbose"] {
		cfg.Verbose = *fc.Verbose
	}
}

// Validate checks cfg for errors.
func (c Config) Validate() error {
	if c.DB == "" {
		return errors.New("db is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}
