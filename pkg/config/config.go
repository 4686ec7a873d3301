// Package config loads the deutsch-spectrum configuration: a YAML file with
// global settings plus per-environment overrides, resolved against the
// ENVIRONMENT and PORT variables at startup.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the config file is looked for when no path is given.
const DefaultPath = "config.yaml"

// Settings is one flattened set of options. Zero values mean "not set" and
// are filled from the level below during resolution.
type Settings struct {
	// Listen is the server's listen address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// AnalyzerURL is the base URL of the analyzer service.
	AnalyzerURL string `yaml:"analyzer_url"`

	// CacheSize bounds the analysis cache entries.
	CacheSize int `yaml:"cache_size"`

	// CacheTTLSeconds is the analysis cache entry lifetime.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`

	// ViewportWidth and ViewportHeight describe the assumed viewport for
	// tooltip clamping.
	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`

	// TooltipHideDelayMS is the hover-leave debounce in milliseconds.
	TooltipHideDelayMS int `yaml:"tooltip_hide_delay_ms"`

	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// CacheTTL returns the cache TTL as a duration.
func (s Settings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// HideDelay returns the tooltip debounce as a duration.
func (s Settings) HideDelay() time.Duration {
	return time.Duration(s.TooltipHideDelayMS) * time.Millisecond
}

// Defaults match the original service: a local analyzer, a thousand cached
// analyses for five minutes, a laptop-sized viewport.
func Defaults() Settings {
	return Settings{
		Listen:             ":8080",
		AnalyzerURL:        "http://localhost:8000",
		CacheSize:          1000,
		CacheTTLSeconds:    300,
		ViewportWidth:      1280,
		ViewportHeight:     800,
		TooltipHideDelayMS: 100,
		LogLevel:           "info",
	}
}

// Config is the parsed file: a default environment name, settings shared by
// every environment, and per-environment overrides.
type Config struct {
	DefaultEnvironment string              `yaml:"default_environment"`
	Global             Settings            `yaml:"global"`
	Environments       map[string]Settings `yaml:"environments"`
}

// Load reads and parses the config file. A missing file is not an error; the
// built-in defaults apply, matching the original loader's behavior.
func Load(ctx context.Context, fsys afero.Fs, path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return nil, errors.Errorf("checking config %s: %w", path, err)
	}
	if !exists {
		zerolog.Ctx(ctx).Warn().Str("path", path).Msg("config file not found, using defaults")
		return &Config{DefaultEnvironment: "development"}, nil
	}

	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.DefaultEnvironment == "" {
		cfg.DefaultEnvironment = "development"
	}

	zerolog.Ctx(ctx).Debug().
		Str("path", path).
		Str("default_environment", cfg.DefaultEnvironment).
		Int("environments", len(cfg.Environments)).
		Msg("config loaded")
	return &cfg, nil
}

// Resolve flattens the config for one environment: defaults, overlaid with
// the global section, overlaid with the environment's section, overlaid with
// the ENVIRONMENT and PORT variables. Returns the settings and the
// environment name they were resolved for.
func (c *Config) Resolve(ctx context.Context) (Settings, string) {
	env := c.DefaultEnvironment
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		env = v
	}

	s := Defaults()
	s = overlay(s, c.Global)
	if envSettings, ok := c.Environments[env]; ok {
		s = overlay(s, envSettings)
	} else if env != c.DefaultEnvironment || len(c.Environments) > 0 {
		zerolog.Ctx(ctx).Warn().Str("environment", env).Msg("environment not in config, using global settings")
	}

	if port := os.Getenv("PORT"); port != "" {
		s.Listen = listenWithPort(s.Listen, port)
	}

	zerolog.Ctx(ctx).Debug().
		Str("environment", env).
		Str("listen", s.Listen).
		Str("analyzer_url", s.AnalyzerURL).
		Msg("config resolved")
	return s, env
}

func overlay(base, over Settings) Settings {
	if over.Listen != "" {
		base.Listen = over.Listen
	}
	if over.AnalyzerURL != "" {
		base.AnalyzerURL = over.AnalyzerURL
	}
	if over.CacheSize > 0 {
		base.CacheSize = over.CacheSize
	}
	if over.CacheTTLSeconds > 0 {
		base.CacheTTLSeconds = over.CacheTTLSeconds
	}
	if over.ViewportWidth > 0 {
		base.ViewportWidth = over.ViewportWidth
	}
	if over.ViewportHeight > 0 {
		base.ViewportHeight = over.ViewportHeight
	}
	if over.TooltipHideDelayMS > 0 {
		base.TooltipHideDelayMS = over.TooltipHideDelayMS
	}
	if over.LogLevel != "" {
		base.LogLevel = over.LogLevel
	}
	return base
}

// listenWithPort swaps the port of a listen address, keeping the host part.
func listenWithPort(listen, port string) string {
	host := ""
	if i := strings.LastIndex(listen, ":"); i >= 0 {
		host = listen[:i]
	}
	return fmt.Sprintf("%s:%s", host, port)
}
