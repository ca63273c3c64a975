package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/pricesentry/internal/di"
	"github.com/aristath/pricesentry/internal/scheduler"
	"github.com/aristath/pricesentry/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP status API until interrupted",
		Long: `Start the cron scheduler (AM/PM sessions, cache cleanup, maintenance) and
the HTTP API with Prometheus metrics at /metrics. SIGINT or SIGTERM shuts
down gracefully and flushes the price cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				a.cfg.Port = port
			}
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Override HTTP_PORT")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	log := a.log
	log.Info().Msg("Starting pricesentry")

	c, err := a.container(ctx)
	if err != nil {
		return err
	}
	defer closeContainer(a, c)

	sched := scheduler.New(a.cfg.Location(), log)
	if _, err := di.RegisterJobs(ctx, c, a.cfg, sched, log); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Log:      log,
		Calendar: c.Calendar,
		Location: a.cfg.Location(),
		Alerts:   c.AlertRepo,
		Prices:   c.Cache,
		Runner:   c.Runner,
		Jobs:     sched,
		Metrics:  c.Metrics.Handler(),
		Port:     a.cfg.Port,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	sched.Start()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case err = <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return err
}

func closeContainer(a *app, c *di.Container) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close cleanly")
	}
}
