package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tree-sitter-cerium/internal/shared/util"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	HeapMB     uint64            `json:"heap_alloc_mb"`
	Components map[string]string `json:"components"`
}

// healthState is updated by the watch loop after every verification run.
type healthState struct {
	mu         sync.RWMutex
	lastRun    string
	lastResult string
	lastAt     time.Time
	lastErr    string
}

func (h *healthState) record(report verifyReport, err error, failOnDrift bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRun = report.RunID
	h.lastAt = time.Now().UTC()
	h.lastErr = ""
	switch {
	case err != nil:
		h.lastResult = "error"
		h.lastErr = err.Error()
	case report.failed(failOnDrift):
		h.lastResult = "fail"
	default:
		h.lastResult = "pass"
	}
}

func (h *healthState) check() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		HeapMB:     util.HeapAllocMB(),
		Components: make(map[string]string),
	}
	switch h.lastResult {
	case "":
		status.Components["verification"] = "pending"
	case "pass":
		status.Components["verification"] = "ok (run " + h.lastRun + ")"
	default:
		status.Status = "degraded"
		status.Components["verification"] = h.lastResult + " (run " + h.lastRun + ")"
		if h.lastErr != "" {
			status.Components["verification_error"] = h.lastErr
		}
	}
	return status
}

type ObservabilityServer struct {
	addr     string
	health   *healthState
	limiters *util.LimiterRegistry
	server   *http.Server
}

func NewObservabilityServer(addr string, health *healthState) *ObservabilityServer {
	return &ObservabilityServer{
		addr:     addr,
		health:   health,
		limiters: util.NewLimiterRegistry(10, 20, 5*time.Minute),
	}
}

func (s *ObservabilityServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.health.check()
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})
	return s.rateLimit(mux)
}

// rateLimit throttles scrapers per client IP.
func (s *ObservabilityServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiters.Get(host).Allow(1) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *ObservabilityServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	slog.Info("observability server starting", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server failed", "error", err)
		}
	}()
	return nil
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	s.limiters.Stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
