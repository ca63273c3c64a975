package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/pricesentry/internal/config"
	"github.com/aristath/pricesentry/internal/di"
	"github.com/aristath/pricesentry/pkg/logger"
)

// app carries state shared by subcommands once the root has loaded config
type app struct {
	cfg *config.Config
	log zerolog.Logger
}

// container wires all dependencies. Callers must Close it.
func (a *app) container(ctx context.Context) (*di.Container, error) {
	c, err := di.Wire(ctx, a.cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return c, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	root := &cobra.Command{
		Use:   "pricesentry",
		Short: "Market price acquisition and trade alerting",
		Long: `pricesentry resolves current prices for a tracked ticker universe through a
rate-limited chain of quote providers, compares them with analyst buy/sell
ranges and emails the resulting trade alerts once per AM/PM session.

Configuration comes from .env, an optional YAML file named by
PRICESENTRY_CONFIG, and environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			a.cfg = cfg
			a.log = logger.New(logger.Config{
				Level:  cfg.LogLevel,
				Pretty: cfg.LogPretty,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug|info|warn|error)")

	root.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newCalendarCmd(a),
		newPricesCmd(a),
		newAlertsCmd(a),
		newTickersCmd(a),
	)
	return root
}
