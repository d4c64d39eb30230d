package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peerview/peerview/internal/config"
	"github.com/peerview/peerview/internal/hub"
)

// Run starts the signaling server and blocks until ctx is cancelled, then
// shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	h := hub.NewHub()
	go h.Run()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: SetupRouter(h, cfg.Mode == "release"),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("module", "server").Str("addr", addr).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Str("module", "server").Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
