// Package server provides the HTTP API for furui.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/furui/internal/config"
	"github.com/hyperjump/furui/internal/corpus"
	"github.com/hyperjump/furui/internal/models"
	"github.com/hyperjump/furui/internal/report"
)

// FilterRunner launches one filter pass over the corpus under a given run id.
type FilterRunner interface {
	RunAs(ctx context.Context, runID string) (models.RunStats, error)
}

// RunStore reads run history. *ledger.Ledger satisfies it; a nil store
// disables the run-history endpoints.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*models.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]*models.Run, error)
	RunItems(ctx context.Context, runID string) ([]*models.ItemResult, error)
}

// Server is the HTTP server for the furui API.
type Server struct {
	corpus   *corpus.Corpus
	reporter *report.Reporter
	runner   FilterRunner
	store    RunStore
	config   *config.ServerConfig
	logger   *zap.Logger
	version  string
	server   *http.Server

	// runCtx outlives individual requests; background filter runs are bound
	// to it and cancelled by Stop.
	runCtx    context.Context
	runCancel context.CancelFunc

	filterMu   sync.Mutex
	filterBusy bool
}

// NewServer creates a server with the given dependencies. store may be nil
// when the run ledger is disabled.
func NewServer(
	c *corpus.Corpus,
	rep *report.Reporter,
	runner FilterRunner,
	store RunStore,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	version string,
) *Server {
	runCtx, runCancel := context.WithCancel(context.Background())
	return &Server{
		corpus:    c,
		reporter:  rep,
		runner:    runner,
		store:     store,
		config:    cfg,
		logger:    logger,
		version:   version,
		runCtx:    runCtx,
		runCancel: runCancel,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/report", s.handleReport)
	r.Get("/api/runs", s.handleRuns)
	r.Get("/api/runs/{id}", s.handleGetRun)
	r.Post("/api/filter", s.handleFilterStart)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop cancels any background filter run and gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.runCancel()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
