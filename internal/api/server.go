// Package api is the reference sync server: REST writes against the
// authoritative store plus a per-list websocket change stream.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/marcus/branger/internal/serverdb"
)

// Server is the HTTP API server for branger-server.
type Server struct {
	config Config
	http   *http.Server
	store  *serverdb.ServerDB
	hub    *Hub
}

// NewServer creates a Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB) *Server {
	s := &Server{
		config: cfg,
		store:  store,
		hub:    NewHub(),
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server and drops all subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.http.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /v1/lists", s.requireAuth(s.handleCreateList))
	mux.HandleFunc("GET /v1/lists/{id}", s.requireAuth(s.handleGetList))
	mux.HandleFunc("GET /v1/lists/{id}/items", s.requireAuth(s.handleListItems))
	mux.HandleFunc("POST /v1/lists/{id}/items", s.requireAuth(s.handleInsertItem))
	mux.HandleFunc("PATCH /v1/items/{id}", s.requireAuth(s.handleUpdateItem))
	mux.HandleFunc("DELETE /v1/items/{id}", s.requireAuth(s.handleDeleteItem))

	// Subscribe authenticates via query/header inside the handler because
	// websocket clients cannot always set arbitrary headers.
	mux.HandleFunc("GET /v1/lists/{id}/subscribe", s.handleSubscribe)

	return chain(mux, recoveryMiddleware, loggingMiddleware)
}

// handleHealth returns a health check response, pinging the server DB.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAuth enforces the static API key when one is configured.
func (s *Server) requireAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.config.APIKey {
				writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid api key")
				return
			}
		}
		handler(w, r)
	}
}

// recoveryMiddleware converts handler panics into 500s.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("handler panic", "panic", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusCapture struct {
	http.ResponseWriter
	status int
}

func (sc *statusCapture) WriteHeader(code int) {
	sc.status = code
	sc.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs each request with method, path, status, duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Websocket upgrades hijack the connection; wrapping the writer
		// breaks the upgrade, so pass those through untouched.
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sc := &statusCapture{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sc, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sc.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
