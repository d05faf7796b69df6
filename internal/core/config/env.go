package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies CERIUM_<SECTION>_<KEY> environment variables,
// e.g. CERIUM_OBSERVABILITY_PORT. Unparseable values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.GrammarsPath, "CERIUM_GRAMMARS_PATH")
	setEnvBoolPtr(&cfg.GrammarVerification.Enabled, "CERIUM_GRAMMAR_VERIFICATION_ENABLED")
	setEnvBool(&cfg.GrammarVerification.FailOnDrift, "CERIUM_GRAMMAR_VERIFICATION_FAIL_ON_DRIFT")

	setEnvBool(&cfg.History.Enabled, "CERIUM_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "CERIUM_HISTORY_PATH")
	setEnvDuration(&cfg.History.Retention, "CERIUM_HISTORY_RETENTION")

	setEnvDuration(&cfg.Watch.Debounce, "CERIUM_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.RateLimit, "CERIUM_WATCH_RATE_LIMIT")
	setEnvInt(&cfg.Watch.Burst, "CERIUM_WATCH_BURST")

	setEnvBool(&cfg.Observability.Enabled, "CERIUM_OBSERVABILITY_ENABLED")
	setEnvInt(&cfg.Observability.Port, "CERIUM_OBSERVABILITY_PORT")
	setEnvBool(&cfg.Observability.EnableMetrics, "CERIUM_OBSERVABILITY_ENABLE_METRICS")
	setEnvBool(&cfg.Observability.EnableTracing, "CERIUM_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "CERIUM_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvFloat64(&cfg.Observability.SampleRate, "CERIUM_OBSERVABILITY_SAMPLE_RATE")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = &b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
