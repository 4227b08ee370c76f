package metrics

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/arl/statsviz"
)

// DebugServerOptions configures the optional debug HTTP surface.
type DebugServerOptions struct {
	ListenAddress  string
	EnablePprof    bool
	EnableExpvar   bool
	EnableStatsviz bool
}

// DebugServer serves /debug/pprof, /metrics (expvar), and /debug/statsviz
// for live inspection of a running manager. It is entirely optional — a
// manager runs fine with no DebugServer at all.
type DebugServer struct {
	server  *http.Server
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
}

// NewDebugServer builds (but does not start) the debug HTTP surface.
func NewDebugServer(opts DebugServerOptions, logger *slog.Logger) *DebugServer {
	logger = logger.With("component", "debug_server")
	mux := http.NewServeMux()

	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	if opts.EnableExpvar {
		mux.Handle("/metrics", expvar.Handler())
	}
	if opts.EnableStatsviz {
		_ = statsviz.Register(mux,
			statsviz.Root("/debug/statsviz"),
			statsviz.SendFrequency(250*time.Millisecond),
		)
	}

	addr := opts.ListenAddress
	if addr == "" {
		addr = ":6060"
	}

	return &DebugServer{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start runs the debug HTTP server. Blocking — call from its own goroutine.
func (s *DebugServer) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("debug server listening", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("debug server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the debug server down.
func (s *DebugServer) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("debug server shutdown failed", "error", err)
	}
}
