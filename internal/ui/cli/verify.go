package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"tree-sitter-cerium/internal/core/config"
	"tree-sitter-cerium/internal/data/fingerprints"
	"tree-sitter-cerium/internal/engine/grammar"
	"tree-sitter-cerium/internal/engine/registry"
	"tree-sitter-cerium/internal/engine/runtime"
	"tree-sitter-cerium/internal/shared/observability"
	"tree-sitter-cerium/internal/shared/util"
	"tree-sitter-cerium/pkg/descriptor"
)

type verifyReport struct {
	RunID     string
	Languages []string
	Issues    []grammar.VerificationIssue
	// HostErr is set when a compiled parser listed in the manifest could
	// not be loaded or disagrees with its descriptor.
	HostErr error
	Drift   []fingerprints.Drift
	// Recorded is false when history is disabled.
	Recorded bool
}

func (r verifyReport) failed(failOnDrift bool) bool {
	return len(r.Issues) > 0 || r.HostErr != nil || (failOnDrift && len(r.Drift) > 0)
}

func (r verifyReport) problemCount() int {
	n := len(r.Issues)
	if r.HostErr != nil {
		n++
	}
	return n
}

// verifier runs one verification pass. store is nil when history is off.
type verifier struct {
	cfg       *config.Config
	languages map[string]registry.LanguageSpec
	store     *fingerprints.Store
}

func (v *verifier) verify(ctx context.Context) (verifyReport, error) {
	grammarsPath := v.cfg.ResolvedGrammarsPath()

	var descs []*descriptor.Language
	var names []string
	for _, name := range util.SortedStringKeys(v.languages) {
		if !v.languages[name].Enabled {
			continue
		}
		desc, err := registry.Descriptor(name)
		if err != nil {
			return verifyReport{}, err
		}
		descs = append(descs, desc)
		names = append(names, name)
	}

	run := fingerprints.NewRun(grammarsPath, descs)
	report := verifyReport{RunID: run.ID, Languages: names}

	ctx, span := observability.StartVerifySpan(ctx, run.ID, grammarsPath)
	defer span.End()

	issues, err := grammar.VerifyRegistryArtifacts(grammarsPath, v.languages)
	if err != nil {
		observability.RecordError(span, err)
		observability.VerificationRunsTotal.WithLabelValues("error").Inc()
		return report, err
	}
	report.Issues = issues
	for _, issue := range issues {
		observability.VerificationIssuesTotal.WithLabelValues(issue.Language).Inc()
	}

	if _, err := runtime.NewGrammarLoader(ctx, grammarsPath, v.languages, false); err != nil {
		report.HostErr = err
	}

	if v.store != nil {
		drift, err := v.store.Drift(run.Records)
		if err != nil {
			observability.RecordError(span, err)
			return report, err
		}
		report.Drift = drift
		for _, d := range drift {
			observability.DescriptorDriftTotal.WithLabelValues(d.Language).Inc()
		}

		run.IssueCount = report.problemCount()
		if err := v.store.Record(run); err != nil {
			observability.RecordError(span, err)
			return report, err
		}
		report.Recorded = true

		if retention := v.cfg.History.Retention; retention > 0 {
			removed, err := v.store.Prune(time.Now().Add(-retention))
			if err != nil {
				slog.Warn("failed to prune fingerprint history", "error", err)
			} else if removed > 0 {
				slog.Debug("pruned fingerprint history", "runs", removed)
			}
		}
	}

	observability.RecordVerifyResult(span, report.problemCount(), len(report.Drift))
	result := "pass"
	if report.failed(v.cfg.GrammarVerification.FailOnDrift) {
		result = "fail"
	}
	observability.VerificationRunsTotal.WithLabelValues(result).Inc()
	return report, nil
}

func writeVerifyReport(out io.Writer, report verifyReport, failOnDrift bool) {
	for _, issue := range report.Issues {
		fmt.Fprintln(out, failStyle.Render("✗ ")+issue.String())
	}
	if report.HostErr != nil {
		fmt.Fprintln(out, failStyle.Render("✗ ")+"compiled grammar: "+report.HostErr.Error())
	}
	for _, d := range report.Drift {
		style := warnStyle
		if failOnDrift {
			style = failStyle
		}
		fmt.Fprintf(out, "%s%s: fingerprint changed since run %s (%s -> %s)\n",
			style.Render("! "), d.Language, d.Previous.RunID,
			shortFingerprint(d.Previous.Fingerprint), shortFingerprint(d.Current.Fingerprint))
	}

	if report.failed(failOnDrift) {
		fmt.Fprintln(out, failStyle.Render(fmt.Sprintf("Grammar verification failed: %d issues, %d drifted.",
			report.problemCount(), len(report.Drift))))
		return
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Grammar verification passed for %d languages.", len(report.Languages))))
	if report.Recorded {
		fmt.Fprintln(out, statusStyle.Render("Recorded run "+report.RunID))
	}
}

// openHistory opens the fingerprint store. A corrupt database is reported and
// skipped so verification still runs; a nil store means no history.
func (s *session) openHistory() (*fingerprints.Store, error) {
	path := s.cfg.ResolvedHistoryPath()
	store, err := fingerprints.Open(path)
	if err == nil {
		slog.Debug("opened fingerprint history", "path", store.Path())
		return store, nil
	}
	if fingerprints.IsCorruptError(err) {
		slog.Warn("fingerprint history is corrupt", "path", path, "error", err)
		fmt.Fprintln(s.stderr, warnStyle.Render("fingerprint history at "+path+" is unreadable; drift checks skipped"))
		return nil, nil
	}
	return nil, err
}

func (s *session) runVerify(ctx context.Context, args []string) int {
	fs := newFlagSet("verify", s.stderr)
	noHistory := fs.Bool("no-history", false, "Do not read or record fingerprint history")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		return s.usageError("verify [-no-history]")
	}

	if !s.cfg.GrammarVerification.IsEnabled() {
		fmt.Fprintln(s.stdout, "Grammar verification is disabled in config (grammar_verification.enabled=false); no checks were run.")
		return 0
	}

	languages, err := s.languages()
	if err != nil {
		return s.fail("invalid language registry", err)
	}

	shutdown, err := s.startTracing(ctx)
	if err != nil {
		return s.fail("failed to start tracing", err)
	}
	defer shutdown()

	v := &verifier{cfg: s.cfg, languages: languages}
	if s.cfg.History.Enabled && !*noHistory {
		store, err := s.openHistory()
		if err != nil {
			return s.fail("failed to open fingerprint history", err, "path", s.cfg.ResolvedHistoryPath())
		}
		if store != nil {
			defer store.Close()
			v.store = store
		}
	}

	report, err := v.verify(ctx)
	if err != nil {
		return s.fail("grammar verification failed", err)
	}
	writeVerifyReport(s.stdout, report, s.cfg.GrammarVerification.FailOnDrift)
	if report.failed(s.cfg.GrammarVerification.FailOnDrift) {
		return 1
	}
	return 0
}

// startTracing installs the OTLP exporter when tracing is configured and
// returns its shutdown func.
func (s *session) startTracing(ctx context.Context) (func(), error) {
	obs := s.cfg.Observability
	if !obs.EnableTracing {
		return func() {}, nil
	}
	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.ServiceName = obs.ServiceName
	tracingCfg.ServiceVersion = versionString
	tracingCfg.OTLPEndpoint = obs.OTLPEndpoint
	tracingCfg.SampleRate = obs.SampleRate

	tp, err := observability.InitTracing(ctx, tracingCfg)
	if err != nil {
		return nil, err
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}, nil
}
