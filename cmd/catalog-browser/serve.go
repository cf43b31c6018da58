package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/catalog-sync/internal/api"
	"github.com/Sternrassler/catalog-sync/internal/config"
	"github.com/Sternrassler/catalog-sync/pkg/browser"
	"github.com/Sternrassler/catalog-sync/pkg/client"
	"github.com/Sternrassler/catalog-sync/pkg/detail"
	"github.com/Sternrassler/catalog-sync/pkg/scroll"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve a browsing session over HTTP",
		Long: "Opens one browsing session against the configured catalog and serves it over HTTP. " +
			"Front ends report sentinel visibility to /api/sentinel to load further pages.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	return withClient(ctx, cfg, func(c *client.Client) error {
		observer := scroll.NewManualObserver()
		session, err := browser.New(c, observer, cfg.SessionConfig())
		if err != nil {
			return err
		}
		defer session.Close()

		if err := session.Open(ctx); err != nil {
			return fmt.Errorf("loading first page: %w", err)
		}

		details := detail.NewFetcher(c, cfg.RetryConfig(), nil)
		handler := api.New(session, observer, details, api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().
				Str("addr", srv.Addr).
				Str("catalog", cfg.Catalog.BaseURL).
				Str("session_id", session.ID()).
				Msg("Starting catalog browser server")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}

		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
