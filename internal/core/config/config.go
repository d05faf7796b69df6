// Package config loads cerium.toml.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"tree-sitter-cerium/internal/engine/registry"
)

// DefaultPath is the config file read when -config is not given.
const DefaultPath = "cerium.toml"

type Config struct {
	Version             int                 `toml:"version"`
	GrammarsPath        string              `toml:"grammars_path"`
	GrammarVerification GrammarVerification `toml:"grammar_verification"`
	Languages           map[string]Language `toml:"languages"`
	History             History             `toml:"history"`
	Watch               Watch               `toml:"watch"`
	Observability       Observability       `toml:"observability"`

	// dir is the directory of the loaded file; relative paths resolve against it.
	dir string
}

type GrammarVerification struct {
	Enabled *bool `toml:"enabled"`
	// FailOnDrift makes a fingerprint change since the last run a verify failure.
	FailOnDrift bool `toml:"fail_on_drift"`
}

type Language struct {
	Enabled             *bool    `toml:"enabled"`
	Extensions          []string `toml:"extensions"`
	Filenames           []string `toml:"filenames"`
	RequireVerification *bool    `toml:"require_verification"`
}

type History struct {
	Enabled   bool          `toml:"enabled"`
	Path      string        `toml:"path"`
	Retention time.Duration `toml:"retention"`
}

type Watch struct {
	Debounce     time.Duration `toml:"debounce"`
	RateLimit    float64       `toml:"rate_limit"`
	Burst        int           `toml:"burst"`
	ExcludeDirs  []string      `toml:"exclude_dirs"`
	ExcludeFiles []string      `toml:"exclude_files"`
}

type Observability struct {
	Enabled       bool    `toml:"enabled"`
	Port          int     `toml:"port"`
	EnableMetrics bool    `toml:"enable_metrics"`
	EnableTracing bool    `toml:"enable_tracing"`
	OTLPEndpoint  string  `toml:"otlp_endpoint"`
	SampleRate    float64 `toml:"sample_rate"`
	ServiceName   string  `toml:"service_name"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// IsEnabled reports whether artifact verification gates grammar loading.
// Verification is on unless explicitly disabled.
func (g GrammarVerification) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// LanguageOverrides converts [languages.*] tables for registry.BuildLanguageRegistry.
func (c *Config) LanguageOverrides() map[string]registry.LanguageOverride {
	if len(c.Languages) == 0 {
		return nil
	}
	out := make(map[string]registry.LanguageOverride, len(c.Languages))
	for name, lang := range c.Languages {
		out[name] = registry.LanguageOverride{
			Enabled:             lang.Enabled,
			Extensions:          append([]string(nil), lang.Extensions...),
			Filenames:           append([]string(nil), lang.Filenames...),
			RequireVerification: lang.RequireVerification,
		}
	}
	return out
}

// ResolvePath makes a configured path absolute relative to the config file.
func (c *Config) ResolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

func (c *Config) ResolvedGrammarsPath() string {
	return c.ResolvePath(c.GrammarsPath)
}

func (c *Config) ResolvedHistoryPath() string {
	return c.ResolvePath(c.History.Path)
}
