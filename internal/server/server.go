// Package server exposes the HTTP trigger, health and metrics endpoints.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voucherbot/internal/pipeline"
	logx "voucherbot/pkg/logx"
)

type Config struct {
	Addr          string
	Secret        string
	EnforceSecret bool
}

// RunFunc executes one check-and-notify pass.
type RunFunc func(ctx context.Context) (pipeline.Result, error)

// Server hosts:
//
//	GET|POST /api/cron  -> run the check pipeline (optionally Bearer-guarded)
//	GET      /healthz   -> liveness
//	GET      /metrics   -> Prometheus
type Server struct {
	log logx.Logger
	run RunFunc

	mu  sync.Mutex
	cfg Config
	srv *http.Server
}

func New(cfg Config, run RunFunc, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{
		cfg: cfg,
		run: run,
		log: log.With(logx.String("comp", "server")),
	}
}

// Apply updates the secret settings at runtime. The listen address is fixed
// for the process lifetime.
func (s *Server) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg.Secret = cfg.Secret
	s.cfg.EnforceSecret = cfg.EnforceSecret
	s.mu.Unlock()
}

// Handler builds the route mux. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cron", s.handleTrigger)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Write timeout stays generous: a trigger run includes the fetch.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.srv = srv
	s.mu.Unlock()

	go func() {
		s.log.Info("http server listening", logx.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server failed", logx.Err(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	s.mu.Lock()
	secret := s.cfg.Secret
	enforce := s.cfg.EnforceSecret
	s.mu.Unlock()

	if secret != "" {
		want := "Bearer " + secret
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			if enforce {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			// Observed legacy behavior: log the mismatch but run the check
			// anyway. Set trigger.enforce_secret to reject instead.
			s.log.Warn("trigger secret mismatch or missing, executing anyway")
		}
	}

	res, err := s.run(r.Context())
	if err != nil {
		s.log.Error("trigger run failed", logx.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
