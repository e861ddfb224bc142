// Package server exposes the session pipeline over WebSocket and a small JSON
// API for managing targets and reasoning models.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/ports"
)

const shutdownTimeout = 5 * time.Second

// SessionHandler is the slice of the session service the transport drives.
type SessionHandler interface {
	Connect(ctx context.Context, sessionID string, sink ports.EventSink) error
	Disconnect(ctx context.Context, sessionID string)
	Submit(ctx context.Context, sessionID string, req domain.InstructionRequest, sink ports.EventSink) error
}

// KeySetter stores API keys supplied at runtime.
type KeySetter interface {
	Set(kind domain.ProviderKind, key string)
}

// Server wires HTTP routes to the application services.
type Server struct {
	Sessions       SessionHandler
	Targets        ports.TargetStore
	Config         ports.ConfigStore
	Keys           KeySetter
	Logger         ports.Logger
	AllowedOrigins []string
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/servers", s.handleListServers)
	mux.HandleFunc("POST /api/register-server", s.handleRegisterServer)
	mux.HandleFunc("PUT /api/servers/{name}", s.handleUpdateServer)
	mux.HandleFunc("DELETE /api/servers/{name}", s.handleDeleteServer)
	mux.HandleFunc("GET /api/llm-config", s.handleGetModels)
	mux.HandleFunc("POST /api/llm-config", s.handleSetModel)
	return s.withCORS(s.withRequestLog(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// Open WebSocket connections observe the cancellation through their request
// context.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()
	s.Logger.Info("server listening", map[string]interface{}{"addr": listener.Addr().String()})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.Logger.Info("server stopped", nil)
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.Logger.Debug("http request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(started).Milliseconds(),
		})
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed matches the origin's host against AllowedOrigins using the
// same glob rules the WebSocket handshake applies.
func (s *Server) originAllowed(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, pattern := range s.AllowedOrigins {
		if pattern == "*" {
			return true
		}
		if matched, _ := path.Match(pattern, parsed.Host); matched {
			return true
		}
	}
	return false
}

func (s *Server) anyOrigin() bool {
	for _, pattern := range s.AllowedOrigins {
		if pattern == "*" {
			return true
		}
	}
	return false
}
