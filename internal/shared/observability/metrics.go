package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	VerificationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cerium_verification_runs_total",
		Help: "Total number of grammar artifact verification runs.",
	}, []string{"result"})

	VerificationIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cerium_verification_issues_total",
		Help: "Total number of verification issues reported, by language.",
	}, []string{"language"})

	DescriptorDriftTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cerium_descriptor_drift_total",
		Help: "Descriptor fingerprints that changed since the last recorded run.",
	}, []string{"language"})

	GrammarLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cerium_grammar_load_seconds",
		Help:    "Time spent loading a grammar and checking it against its host language.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cerium_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ParserPoolActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cerium_parser_pool_active",
		Help: "Parsers currently leased from a pool.",
	}, []string{"language"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cerium_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatcherThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cerium_watcher_throttled_total",
		Help: "Change batches skipped because re-verification was rate limited.",
	})
)
