package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the harness metrics over HTTP for the duration of a
// batch. An empty address disables it: a local one-shot run does not
// need a scrape endpoint.
type Server struct {
	addr   string
	ln     net.Listener
	server *http.Server
	logger *slog.Logger
}

// NewServer creates the metrics server. Call Start to bind it.
func NewServer(addr string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler)

	return &Server{
		addr:   addr,
		logger: logger,
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// Start binds the listener and serves in the background. Binding here
// rather than inside ListenAndServe surfaces a bad address immediately
// and lets Addr report the real port when the address uses :0.
func (s *Server) Start() error {
	if s.addr == "" {
		s.logger.Debug("metrics_server_disabled")
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind metrics listener on %s: %w", s.addr, err)
	}
	s.ln = ln

	s.logger.Info("metrics_server_listening", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics_server_error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server. A no-op when the server never
// bound, so the caller can defer it unconditionally.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}
	s.logger.Debug("metrics_server_shutting_down")
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address once Start succeeds, otherwise the
// configured one.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}
