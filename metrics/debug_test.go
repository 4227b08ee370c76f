package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDebugServerDefaultsListenAddress(t *testing.T) {
	s := NewDebugServer(DebugServerOptions{}, discardLogger())
	if s.server.Addr != ":6060" {
		t.Fatalf("expected default address :6060, got %q", s.server.Addr)
	}
}

func TestNewDebugServerRegistersOnlyEnabledRoutes(t *testing.T) {
	s := NewDebugServer(DebugServerOptions{
		ListenAddress: ":0",
		EnableExpvar:  true,
	}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics: status = %d, want 200", rec.Code)
	}

	// pprof was not enabled, so its route falls through to mux's 404.
	req = httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("/debug/pprof/ with pprof disabled: status = %d, want 404", rec.Code)
	}
}

func TestNewDebugServerRegistersPprofWhenEnabled(t *testing.T) {
	s := NewDebugServer(DebugServerOptions{EnablePprof: true}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/debug/pprof/: status = %d, want 200", rec.Code)
	}
}

func TestDebugServerStopBeforeStartIsNoop(t *testing.T) {
	s := NewDebugServer(DebugServerOptions{}, discardLogger())
	s.Stop()
}
