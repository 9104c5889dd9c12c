// Package server exposes documents, their versions and editing sessions
// over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/tabula/internal/trash"
	"github.com/mesh-intelligence/tabula/internal/versions"
)

const shutdownTimeout = 5 * time.Second

// Server routes HTTP requests to a version store and its editing sessions.
type Server struct {
	store       *versions.Store
	logger      *slog.Logger
	router      *chi.Mux
	sessions    *registry
	trashOpts   []trash.Option
	persister   trash.Persister
	now         func() time.Time
	idleTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithTrashOptions applies opts to the trash stack of every session.
func WithTrashOptions(opts ...trash.Option) Option {
	return func(s *Server) { s.trashOpts = append(s.trashOpts, opts...) }
}

// WithTrashPersister stores each session's trash in p under the session
// key. Opening a session with the same key later resumes that trash.
func WithTrashPersister(p trash.Persister) Option {
	return func(s *Server) { s.persister = p }
}

// WithSessionIdleTimeout drops sessions that have not been used for d.
// Their persisted trash is kept so the key can be resumed. Zero disables
// expiry.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithClock replaces time.Now for session bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server on store.
func New(store *versions.Store, opts ...Option) *Server {
	s := &Server{
		store:    store,
		logger:   slog.New(slog.DiscardHandler),
		sessions: newRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/documents", s.handleListDocuments)
	r.Route("/documents/{doc}", func(r chi.Router) {
		r.Get("/", s.handleGetDocument)
		r.Put("/", s.handlePutDocument)
		r.Get("/download", s.handleDownload)
		r.Post("/sessions", s.handleOpenSession)

		r.Get("/versions", s.handleListVersions)
		r.Route("/versions/{snap}", func(r chi.Router) {
			r.Get("/", s.handleGetVersion)
			r.Delete("/", s.handleDeleteVersion)
			r.Get("/diff", s.handleDiff)
			r.Post("/restore", s.handleRestore)
		})
	})

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Delete("/", s.handleCloseSession)
		r.Post("/save", s.handleSaveSession)

		r.Post("/rows", s.handleInsertRow)
		r.Delete("/rows/{row}", s.handleDeleteRow)
		r.Put("/rows/{row}/cells/{col}", s.handleSetCell)

		r.Get("/trash", s.handleListTrash)
		r.Delete("/trash", s.handleClearTrash)
		r.Post("/trash/restore-all", s.handleRestoreAll)
		r.Post("/trash/undo", s.handleUndo)
		r.Post("/trash/{entry}/restore", s.handleRestoreEntry)
		r.Delete("/trash/{entry}", s.handlePurgeEntry)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})
	if s.idleTimeout > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(max(s.idleTimeout/2, time.Second))
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					s.expireIdle()
				}
			}
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// expireIdle drops sessions idle for longer than the idle timeout and
// returns how many were dropped.
func (s *Server) expireIdle() int {
	if s.idleTimeout <= 0 {
		return 0
	}
	expired := s.sessions.expire(s.now().Add(-s.idleTimeout))
	for _, sess := range expired {
		s.logger.Info("session expired", "session", sess.id, "key", sess.key, "doc", sess.ed.Doc())
	}
	return len(expired)
}
