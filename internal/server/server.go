// Package server provides the HTTP surface: the retrieval API, bearer
// auth and rate limiting, and the websocket activity feed.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/config"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/router"
)

// Server bundles the HTTP server, handlers, and activity hub.
type Server struct {
	cfg    *config.Config
	http   *http.Server
	hub    *ActivityHub
	logger *log.Logger
}

// New wires the API over the router and registers routes. The router's
// activity events are broadcast to websocket subscribers.
func New(cfg *config.Config, rt *router.Router) *Server {
	hub := NewActivityHub()
	rt.OnActivity(func(ev router.Event) { hub.Broadcast(ev) })

	api := NewAPI(rt)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", api.HandleHealth)
	mux.HandleFunc("/api/classify", api.HandleClassify)
	mux.HandleFunc("/api/retrieve", api.HandleRetrieve)
	mux.HandleFunc("/api/facts", api.HandleFacts)
	mux.HandleFunc("/api/entities/related", api.HandleRelatedEntities)
	mux.Handle("/ws/activity", hub)

	rl := NewRateLimiter(10.0, 20)
	var handler http.Handler = mux
	handler = RateLimitMiddleware(handler, rl)
	handler = RequireAuth(handler, cfg.Security)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		hub:    hub,
		logger: log.WithPrefix("server"),
	}
}

// Start listens and serves until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.http.Addr, err)
	}
	s.logger.Info("listening", "addr", ln.Addr().String())

	go s.hub.Run()

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.hub.Stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown", "err", err)
	}
	s.hub.Stop()
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}
