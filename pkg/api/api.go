// Package api serves the recorded run-archive state and the archived
// report files over a small read-only HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/perfops/simarchive/pkg/config"
	"github.com/perfops/simarchive/pkg/runstate"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	store      runstate.Store
	storageDir string
	httpServer *http.Server
}

// NewServer creates a new API server over an already-started store.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	store runstate.Store,
	storageDir string,
) Server {
	return &server{
		log:        log.WithField("component", "api"),
		cfg:        cfg,
		store:      store,
		storageDir: storageDir,
	}
}

// Start begins serving HTTP requests.
func (s *server) Start(_ context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithField("listen", s.cfg.Listen).Info("API server listening")

	go func() {
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("API server failed")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}

	s.log.Info("API server stopped")

	return nil
}
