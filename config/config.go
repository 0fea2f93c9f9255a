// Package config holds the settings of a minimaps run. Settings come from
// Default, optionally overlaid by a YAML file, and finally by command-line
// flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBuild   = "1a02465e2f1f1e30bba258ca49d2b60b"
	DefaultBaseURL = "https://wow.tools/casc/file/"
)

var ErrInvalidConfig = errors.New("minimaps: invalid config")

type Config struct {
	// Build is the build configuration hash all content is requested for.
	Build   string `yaml:"build"`
	BaseURL string `yaml:"base_url"`

	// CacheDir is the root of the content cache, one subdirectory per build.
	CacheDir string `yaml:"cache_dir"`
	OutDir   string `yaml:"out_dir"`

	// Catalog is the map catalog file. CatalogFormat is "sqlite", "csv" or
	// empty to deduce it from the file extension.
	Catalog       string `yaml:"catalog"`
	CatalogFormat string `yaml:"catalog_format"`

	// Workers is the number of maps compiled concurrently; 0 means one per
	// CPU.
	Workers int `yaml:"workers"`

	// RequestsPerSecond paces remote requests; 0 disables pacing.
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		Build:    DefaultBuild,
		BaseURL:  DefaultBaseURL,
		CacheDir: "cache",
		OutDir:   "out",
		Catalog:  "maps.db",
		Timeout:  time.Minute,
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Build == "":
		return fmt.Errorf("%w: empty build", ErrInvalidConfig)
	case c.BaseURL == "":
		return fmt.Errorf("%w: empty base_url", ErrInvalidConfig)
	case c.CacheDir == "":
		return fmt.Errorf("%w: empty cache_dir", ErrInvalidConfig)
	case c.OutDir == "":
		return fmt.Errorf("%w: empty out_dir", ErrInvalidConfig)
	case c.Workers < 0:
		return fmt.Errorf("%w: negative workers %d", ErrInvalidConfig, c.Workers)
	case c.RequestsPerSecond < 0:
		return fmt.Errorf("%w: negative requests_per_second %v", ErrInvalidConfig, c.RequestsPerSecond)
	case c.Timeout < 0:
		return fmt.Errorf("%w: negative timeout %v", ErrInvalidConfig, c.Timeout)
	}
	switch c.CatalogFormat {
	case "", "sqlite", "csv":
	default:
		return fmt.Errorf("%w: unknown catalog_format %q", ErrInvalidConfig, c.CatalogFormat)
	}
	return nil
}
