// Package server exposes interactive lineage views over HTTP.
//
// Each client creates a session, which owns one [session.Viewer]. The
// viewer's state is exported as JSON after every mutation, and frames can
// be fetched as PNG or SVG at any size. A websocket stream pushes views
// while the simulation or camera moves and accepts commands in return.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/lineage/pkg/backend"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/session"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"

	// DefaultRequestTimeout bounds one request, including backend calls.
	DefaultRequestTimeout = 30 * time.Second

	cleanupInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

// Backend is the lineage data source behind the API.
type Backend interface {
	session.Backend
	Search(ctx context.Context, name string) ([]lineage.Entry, error)
	Stats(ctx context.Context) (backend.Stats, error)
}

// Options configures a Server.
type Options struct {
	Backend  Backend
	Sessions *session.Manager
	Logger   *log.Logger
	Timeout  time.Duration
}

// Server is the HTTP API.
type Server struct {
	backend  Backend
	sessions *session.Manager
	logger   *log.Logger
	timeout  time.Duration
	router   chi.Router
	upgrader websocket.Upgrader
}

// New builds a server and its routes. A nil session manager gets one over
// the same backend.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewManager(session.ManagerOptions{Backend: opts.Backend, Logger: opts.Logger})
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	s := &Server{
		backend:  opts.Backend,
		sessions: opts.Sessions,
		logger:   opts.Logger,
		timeout:  opts.Timeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully and closes every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.sessions.Run(ctx, cleanupInterval)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.sessions.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	err := srv.Shutdown(shutdownCtx)
	s.sessions.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
