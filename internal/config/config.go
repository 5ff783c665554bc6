// Package config loads the optional YAML defaults file pperf reads
// before applying command-line flags, so a team can pin its preferred
// sort order, row limit, and color policy once instead of repeating
// flags on every invocation.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ColorMode is the config file's color setting. Only ColorNever changes
// behavior (it acts like --no-color); ColorAuto and ColorAlways both
// leave the NO_COLOR/terminal check in charge.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Config holds the defaults a pperf invocation falls back to when the
// corresponding flag isn't set explicitly.
type Config struct {
	Top         int       `yaml:"top"`
	Sort        string    `yaml:"sort"`
	Color       ColorMode `yaml:"color"`
	MetricsAddr string    `yaml:"metrics_addr"`
	Targets     []string  `yaml:"targets"`
	Hierarchy   bool      `yaml:"hierarchy"`
	Debug       bool      `yaml:"debug"`
}

// Default returns the built-in defaults used when no config file is
// given.
func Default() *Config {
	return &Config{
		Top:   0,
		Sort:  "children",
		Color: ColorAuto,
	}
}

// Load reads and parses a YAML config file at path, filling in any field
// left at its zero value with Default()'s value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if cfg.Sort == "" {
		cfg.Sort = "children"
	}
	if cfg.Color == "" {
		cfg.Color = ColorAuto
	}
	return cfg, nil
}
