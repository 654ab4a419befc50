package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"drdesk/config"
	"drdesk/core/attachments"
	"drdesk/core/auth"
	"drdesk/core/metrics"
	"drdesk/core/store"
	"drdesk/core/utils"
	"drdesk/core/workflow"
)

type ServerDeps struct {
	Workflow      *workflow.Service
	Attachments   *attachments.Service
	Authenticator *auth.Authenticator
	Policy        *auth.Policy
	Audits        store.AuditStore
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	FilesDir      string
}

// BackgroundWorker is started with the server and stopped on shutdown.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context) error
	StopWithContext(ctx context.Context) error
}

type Server struct {
	cfg         *config.AppConfig
	logger      *utils.Logger
	workflow    *workflow.Service
	attachments *attachments.Service
	authn       *auth.Authenticator
	policy      *auth.Policy
	audits      store.AuditStore
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	filesDir    string
	workers     []BackgroundWorker
	loginLimit  *requestLimiter

	router     http.Handler
	httpServer *http.Server
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger, workers ...BackgroundWorker) *Server {
	s := &Server{
		cfg:         cfg,
		logger:      logger,
		workflow:    deps.Workflow,
		attachments: deps.Attachments,
		authn:       deps.Authenticator,
		policy:      deps.Policy,
		audits:      deps.Audits,
		metrics:     deps.Metrics,
		gatherer:    deps.Gatherer,
		filesDir:    deps.FilesDir,
		workers:     workers,
		loginLimit:  newLimiter(5, time.Minute),
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the background workers and blocks serving HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	for _, w := range s.workers {
		if err := w.StartWithContext(ctx); err != nil {
			return err
		}
	}
	s.logger.Printf("listening on %s", s.cfg.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, w := range s.workers {
		if err := w.StopWithContext(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.httpServer.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
