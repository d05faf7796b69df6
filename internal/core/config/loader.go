package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	domainerrors "tree-sitter-cerium/internal/core/errors"
	"tree-sitter-cerium/internal/engine/registry"
)

const currentVersion = 1

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		de := &domainerrors.DomainError{Code: domainerrors.CodeValidationError, Message: "decode config", Err: err}
		return nil, de.WithContext(domainerrors.CtxPath, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		cfg.dir = filepath.Dir(abs)
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, domainerrors.AddContext(err, domainerrors.CtxPath, path)
	}
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when path is the default
// config file and does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if os.IsNotExist(err) && filepath.Clean(path) == DefaultPath {
		cfg = Default()
		ApplyEnvOverrides(cfg)
		normalize(cfg)
		return cfg, Validate(cfg)
	}
	return nil, err
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = currentVersion
	}
	if strings.TrimSpace(cfg.GrammarsPath) == "" {
		cfg.GrammarsPath = "grammars"
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "data/state/fingerprints.db"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RateLimit == 0 {
		cfg.Watch.RateLimit = 1
	}
	if cfg.Watch.Burst == 0 {
		cfg.Watch.Burst = 1
	}
	if len(cfg.Watch.ExcludeDirs) == 0 {
		cfg.Watch.ExcludeDirs = []string{".git", "node_modules", "target"}
	}
	if cfg.Observability.Port == 0 {
		cfg.Observability.Port = 9464
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "cerium"
	}
}

func normalize(cfg *Config) {
	cfg.GrammarsPath = strings.TrimSpace(cfg.GrammarsPath)
	cfg.History.Path = strings.TrimSpace(cfg.History.Path)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
	if len(cfg.Languages) == 0 {
		return
	}
	normalized := make(map[string]Language, len(cfg.Languages))
	for name, lang := range cfg.Languages {
		normalized[strings.ToLower(strings.TrimSpace(name))] = lang
	}
	cfg.Languages = normalized
}

// Validate checks a loaded config.
func Validate(cfg *Config) error {
	if err := validateVersion(cfg); err != nil {
		return err
	}
	if err := validateLanguages(cfg); err != nil {
		return err
	}
	if err := validateWatch(cfg); err != nil {
		return err
	}
	return validateObservability(cfg)
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 || cfg.Version > currentVersion {
		return domainerrors.Newf(domainerrors.CodeValidationError, "unsupported config version %d", cfg.Version)
	}
	return nil
}

func validateLanguages(cfg *Config) error {
	for name, lang := range cfg.Languages {
		if lang.Enabled == nil && lang.Extensions == nil && lang.Filenames == nil && lang.RequireVerification == nil {
			return domainerrors.Newf(domainerrors.CodeValidationError, "languages.%s must set at least one option", name)
		}
		for _, pattern := range lang.Filenames {
			if _, err := glob.Compile(strings.ToLower(strings.TrimSpace(pattern))); err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeValidationError, "languages."+name+".filenames has an invalid pattern")
			}
		}
	}
	_, err := registry.BuildLanguageRegistry(cfg.LanguageOverrides())
	return err
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return domainerrors.New(domainerrors.CodeValidationError, "watch.debounce must not be negative")
	}
	if cfg.Watch.RateLimit < 0 || cfg.Watch.Burst < 0 {
		return domainerrors.New(domainerrors.CodeValidationError, "watch.rate_limit and watch.burst must not be negative")
	}
	for _, pattern := range append(append([]string(nil), cfg.Watch.ExcludeDirs...), cfg.Watch.ExcludeFiles...) {
		if _, err := glob.Compile(pattern); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeValidationError, "invalid watch exclude pattern "+pattern)
		}
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.Port < 1 || cfg.Observability.Port > 65535 {
		return domainerrors.Newf(domainerrors.CodeValidationError, "observability.port %d out of range", cfg.Observability.Port)
	}
	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return domainerrors.New(domainerrors.CodeValidationError, "observability.sample_rate must be within [0, 1]")
	}
	if cfg.Observability.EnableTracing && cfg.Observability.OTLPEndpoint == "" {
		return domainerrors.New(domainerrors.CodeValidationError, "observability.enable_tracing requires otlp_endpoint")
	}
	return nil
}
