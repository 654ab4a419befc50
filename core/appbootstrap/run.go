// Package appbootstrap wires stores, services and workers into a running server.
package appbootstrap

import (
	"context"
	"errors"
	"time"

	"drdesk/api"
	"drdesk/config"
	"drdesk/core/store"
	"drdesk/core/utils"
)

const shutdownTimeout = 20 * time.Second

// Run serves until ctx is cancelled, then drains the HTTP server and workers.
func Run(ctx context.Context, cfg *config.AppConfig, db *store.DB, logger *utils.Logger) error {
	comp, err := composeRuntime(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	srv := api.NewServer(cfg, comp.serverDeps, logger.With("component", "http"), comp.workers...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return errors.Join(err, srv.Shutdown(shutdownCtx))
		}
		return nil
	case <-ctx.Done():
		logger.Printf("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
