package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/shell/api"
	"github.com/artpar/keyhours/internal/shell/metrics"
	"github.com/artpar/keyhours/internal/shell/seed"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/artpar/keyhours/internal/shell/workers"
	"github.com/artpar/keyhours/internal/shell/workflow"
	"go.uber.org/zap"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitSeedError       = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the keyhours application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	refresher  *workers.SummaryRefresher
	logger     *zap.Logger
}

// NewServer opens the store, applies the seed file and builds the HTTP
// server with the given config.
func NewServer(cfg *Config, logger *zap.Logger) (*Server, error) {
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	opts := []workflow.Option{}
	if m != nil {
		opts = append(opts, workflow.WithRecorder(m))
	}
	var issuer *auth.TokenIssuer
	if cfg.Auth.JWTSecret != "" {
		issuer, err = auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			s.Close()
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      err,
				ExitCode: ExitConfigError,
			}
		}
		opts = append(opts, workflow.WithTokenIssuer(issuer))
	}

	svc := workflow.New(s, workflow.Config{
		PublicProjectsLimit: cfg.Workflow.PublicProjectsLimit,
		DashboardTopN:       cfg.Workflow.DashboardTopN,
	}, logger, opts...)

	if cfg.Seed.File != "" {
		if err := applySeed(svc, cfg.Seed.File, logger); err != nil {
			s.Close()
			return nil, &ServerError{
				Op:       "Seed",
				Err:      err,
				ExitCode: ExitSeedError,
			}
		}
	}

	apiConfig := api.Config{
		AuthMode:    cfg.Auth.Mode,
		RequireAuth: cfg.Auth.RequireAuth,
		ServerURL:   cfg.Server.PublicURL,
		Version:     Version,
	}
	if issuer != nil {
		apiConfig.Verifier = issuer
	}
	handler := api.NewHandler(svc, m, logger.Named("api"), apiConfig)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var refresher *workers.SummaryRefresher
	if cfg.Workers.SummaryRefreshEnabled {
		var observer workers.Observer
		if m != nil {
			observer = m
		}
		refresher = workers.NewSummaryRefresher(svc, observer, workers.SummaryRefresherConfig{
			Schedule: cfg.Workers.SummaryRefreshSchedule,
		}, logger)
	} else {
		logger.Info("summary refresher disabled")
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		refresher:  refresher,
		logger:     logger,
	}, nil
}

func applySeed(svc *workflow.Service, path string, logger *zap.Logger) error {
	f, err := seed.LoadFile(path)
	if err != nil {
		return err
	}
	_, err = seed.NewLoader(svc, logger).Apply(context.Background(), f)
	return err
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if s.refresher != nil {
		if err := s.refresher.Start(); err != nil {
			return &ServerError{
				Op:       "Start",
				Err:      err,
				ExitCode: ExitConfigError,
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("address", s.config.Server.Address()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", zap.Stringer("signal", sig))
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if s.refresher != nil {
		s.refresher.Stop()
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", zap.Error(err))
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
