package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serverLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	healthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "ok\n" {
		t.Errorf("body = %q, want ok", body)
	}
}

func TestServer_StartBindsEphemeralPort(t *testing.T) {
	s := NewServer("127.0.0.1:0", serverLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer s.Shutdown(context.Background())

	// Addr must report the port the kernel assigned, not ":0".
	if strings.HasSuffix(s.Addr(), ":0") {
		t.Fatalf("Addr = %q, want a resolved port", s.Addr())
	}

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_EmptyAddrDisabled(t *testing.T) {
	s := NewServer("", serverLogger())
	if err := s.Start(); err != nil {
		t.Errorf("Start with empty addr should be a no-op: %v", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown without a listener should be a no-op: %v", err)
	}
	if s.Addr() != "" {
		t.Errorf("Addr = %q, want empty", s.Addr())
	}
}

func TestServer_StartBadAddr(t *testing.T) {
	s := NewServer("256.0.0.1:bogus", serverLogger())
	if err := s.Start(); err == nil {
		s.Shutdown(context.Background())
		t.Error("Start should surface an unbindable address")
	}
}
