// Package server provides the HTTP API for Kurabe.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kurabe/internal/config"
	"github.com/hyperjump/kurabe/internal/models"
	"github.com/hyperjump/kurabe/internal/storage"
	"go.uber.org/zap"
)

// MaxUploadBytes caps the size of a scanned file.
const MaxUploadBytes = 16 << 20

// ScanService runs scans. *scan.Scanner implements it.
type ScanService interface {
	SubmitScan(ctx context.Context, upload *models.Upload, userID string) (*models.ScanResult, error)
}

// UserService provisions accounts and refreshes their allowance. *credits.Resetter implements it.
type UserService interface {
	ProvisionUser(ctx context.Context, username string) (*models.User, error)
	ResetIfDue(ctx context.Context, userID string) (*models.User, bool, error)
}

// WatchService reports the inbox directories being watched. *watcher.Watcher implements it.
type WatchService interface {
	Directories() []string
}

// Server is the HTTP server for the Kurabe API.
type Server struct {
	scanner ScanService
	users   UserService
	storage storage.Storage
	watch   WatchService
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithWatch exposes the inbox watcher in the status endpoint.
func WithWatch(w WatchService) Option {
	return func(s *Server) { s.watch = w }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	scanner ScanService,
	users UserService,
	storage storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scanner: scanner,
		users:   users,
		storage: storage,
		config:  cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scans", s.handleSubmitScan)
		r.Get("/scans/{id}", s.handleGetScan)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/documents/{id}/matches", s.handleDocumentMatches)
		r.Post("/users", s.handleCreateUser)
		r.Get("/users/{id}", s.handleGetUser)
		r.Get("/users/{id}/scans", s.handleUserScans)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
