package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"tree-sitter-cerium/internal/core/config"
	"tree-sitter-cerium/internal/core/watcher"
	"tree-sitter-cerium/internal/data/fingerprints"
	"tree-sitter-cerium/internal/engine/registry"
)

// watchLoop re-verifies the grammars directory on every change batch. The
// config may be swapped by a reload while a batch is running.
type watchLoop struct {
	mu     sync.Mutex
	cfg    *config.Config
	store  *fingerprints.Store
	health *healthState
	s      *session
}

func (l *watchLoop) current() *config.Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

func (l *watchLoop) verifyOnce(ctx context.Context, trigger []string) {
	cfg := l.current()
	if len(trigger) > 0 {
		slog.Info("grammar artifacts changed", "paths", trigger)
	}
	if !cfg.GrammarVerification.IsEnabled() {
		slog.Info("grammar verification disabled; skipping")
		return
	}

	languages, err := registry.BuildLanguageRegistry(cfg.LanguageOverrides())
	if err != nil {
		slog.Error("invalid language registry", "error", err)
		return
	}

	v := &verifier{cfg: cfg, languages: languages, store: l.store}
	report, err := v.verify(ctx)
	l.health.record(report, err, cfg.GrammarVerification.FailOnDrift)
	if err != nil {
		slog.Error("grammar verification failed", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.s.stdout, statusStyle.Render(time.Now().Format("15:04:05")+" verification run "+report.RunID))
	writeVerifyReport(l.s.stdout, report, cfg.GrammarVerification.FailOnDrift)
}

// onChange drops paths that lie outside the current grammars directory,
// which happens briefly after a reload moves it.
func (l *watchLoop) onChange(ctx context.Context, paths []string) {
	root := l.current().ResolvedGrammarsPath()
	relevant := make([]string, 0, len(paths))
	for _, path := range paths {
		if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			relevant = append(relevant, path)
		}
	}
	if len(relevant) == 0 {
		slog.Debug("ignoring changes outside the grammars directory", "paths", paths)
		return
	}
	l.verifyOnce(ctx, relevant)
}

// reload swaps in a new config. It reports whether the grammars directory
// moved, in which case the caller should verify again.
func (l *watchLoop) reload(w *watcher.Watcher, cfg *config.Config) bool {
	l.mu.Lock()
	previous := l.cfg.ResolvedGrammarsPath()
	l.cfg = cfg
	l.mu.Unlock()
	w.SetDebounce(cfg.Watch.Debounce)
	w.SetRateLimit(cfg.Watch.RateLimit, cfg.Watch.Burst)

	next := cfg.ResolvedGrammarsPath()
	if next == previous {
		return false
	}
	if err := w.Retarget(previous, next); err != nil {
		slog.Error("cannot watch new grammars directory; restart watch to pick it up", "path", next, "error", err)
		return false
	}
	slog.Info("grammars directory changed", "from", previous, "to", next)
	return true
}

func (s *session) runWatch(ctx context.Context, args []string) int {
	if len(args) != 0 {
		return s.usageError("watch")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := s.startTracing(ctx)
	if err != nil {
		return s.fail("failed to start tracing", err)
	}
	defer shutdown()

	loop := &watchLoop{cfg: s.cfg, health: &healthState{}, s: s}
	if s.cfg.History.Enabled {
		store, err := s.openHistory()
		if err != nil {
			return s.fail("failed to open fingerprint history", err, "path", s.cfg.ResolvedHistoryPath())
		}
		if store != nil {
			defer store.Close()
			loop.store = store
		}
	}

	if s.cfg.Observability.Enabled {
		server := NewObservabilityServer(fmt.Sprintf(":%d", s.cfg.Observability.Port), loop.health)
		if err := server.Start(ctx); err != nil {
			return s.fail("failed to start observability server", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	w, err := watcher.NewWatcher(s.cfg.Watch.Debounce, s.cfg.Watch.ExcludeDirs, s.cfg.Watch.ExcludeFiles, func(paths []string) {
		loop.onChange(ctx, paths)
	})
	if err != nil {
		return s.fail("failed to create watcher", err)
	}
	defer w.Close()
	w.SetRateLimit(s.cfg.Watch.RateLimit, s.cfg.Watch.Burst)

	grammarsPath := s.cfg.ResolvedGrammarsPath()
	if err := w.Watch([]string{grammarsPath}); err != nil {
		return s.fail("failed to watch grammars directory", err, "path", grammarsPath)
	}

	if _, err := os.Stat(s.cfgPath); err == nil {
		cfgWatcher := config.NewWatcher(s.cfgPath, func(cfg *config.Config) {
			if loop.reload(w, cfg) {
				loop.verifyOnce(ctx, nil)
			}
		})
		if err := cfgWatcher.Start(ctx); err != nil {
			slog.Warn("config hot reload unavailable", "path", s.cfgPath, "error", err)
		} else {
			defer cfgWatcher.Stop()
		}
	}

	loop.verifyOnce(ctx, nil)
	slog.Info("watching grammars", "path", grammarsPath)
	<-ctx.Done()
	slog.Info("shutting down")
	return 0
}
