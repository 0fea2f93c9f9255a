package main

import (
	"flag"
	"log/slog"
	"net/http"

	"github.com/eak1mov/go-minimaps/cache"
	"github.com/eak1mov/go-minimaps/casc"
	"github.com/eak1mov/go-minimaps/config"
)

// settings are the flags shared by every command that talks to the mirror.
// Flags set on the command line override the -config file.
type settings struct {
	configPath string
	flags      config.Config
}

func (s *settings) SetFlags(f *flag.FlagSet) {
	defaults := config.Default()
	f.StringVar(&s.configPath, "config", "", "YAML config file")
	f.StringVar(&s.flags.Build, "build", defaults.Build, "Build config hash")
	f.StringVar(&s.flags.BaseURL, "url", defaults.BaseURL, "Mirror base URL")
	f.StringVar(&s.flags.CacheDir, "cache", defaults.CacheDir, "Cache directory")
	f.Float64Var(&s.flags.RequestsPerSecond, "rps", defaults.RequestsPerSecond, "Max remote requests per second (0: unlimited)")
	f.DurationVar(&s.flags.Timeout, "timeout", defaults.Timeout, "Remote request timeout")
}

// load returns the effective config of the command whose flags are f.
func (s *settings) load(f *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if s.configPath != "" {
		var err error
		if cfg, err = config.Load(s.configPath); err != nil {
			return nil, err
		}
	}

	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "build":
			cfg.Build = s.flags.Build
		case "url":
			cfg.BaseURL = s.flags.BaseURL
		case "cache":
			cfg.CacheDir = s.flags.CacheDir
		case "rps":
			cfg.RequestsPerSecond = s.flags.RequestsPerSecond
		case "timeout":
			cfg.Timeout = s.flags.Timeout
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient(cfg *config.Config) (*casc.Client, error) {
	store := cache.NewStore(cfg.CacheDir, cache.WithLogger(slog.Default()))
	client, err := casc.NewClient(cfg.Build, store,
		casc.WithBaseURL(cfg.BaseURL),
		casc.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		casc.WithRateLimit(cfg.RequestsPerSecond),
		casc.WithLogger(slog.Default()),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}
