package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/services"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		session    string
		skipPrices bool
		skipAlerts bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one AM or PM session: prices, signals, alerts",
		Long: `Resolve prices for every tracked ticker, evaluate the analyst ranges and
deliver the session's alerts.

The session defaults to AM before noon market time and PM after. Closed market
days are skipped unless --force is given.

Examples:
  pricesentry run
  pricesentry run --session PM --skip-alerts
  pricesentry run --skip-prices --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := services.RunOptions{
				SkipPrices: skipPrices,
				SkipAlerts: skipAlerts,
				Force:      force,
			}
			if session != "" {
				s, err := domain.ParseSession(session)
				if err != nil {
					return err
				}
				opts.Session = s
			} else {
				opts.Session = a.cfg.CurrentSession(time.Now())
			}
			return runSession(cmd.Context(), a, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "Session to run (AM|PM), detected from market time if omitted")
	cmd.Flags().BoolVar(&skipPrices, "skip-prices", false, "Use stored prices instead of calling providers")
	cmd.Flags().BoolVar(&skipAlerts, "skip-alerts", false, "Evaluate signals without dispatching alerts")
	cmd.Flags().BoolVar(&force, "force", false, "Run even when the market is closed")
	return cmd
}

func runSession(ctx context.Context, a *app, opts services.RunOptions, out io.Writer) error {
	c, err := a.container(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// flush with a fresh context so an interrupted run still saves what it fetched
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := c.Close(flushCtx); cerr != nil {
			a.log.Warn().Err(cerr).Msg("Failed to close cleanly")
		}
	}()

	report, err := c.Runner.Run(ctx, opts)
	if err != nil {
		return err
	}
	printRunReport(out, report)
	return nil
}

func printRunReport(out io.Writer, r *services.RunReport) {
	if r.Skipped {
		fmt.Fprintf(out, "%s session skipped: market closed (use --force to run anyway)\n", r.Session)
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Session", "Tickers", "Priced", "Stale", "Unpriced", "Alerts", "Delivered"})
	table.SetBorder(false)
	table.Append([]string{
		string(r.Session),
		strconv.Itoa(r.Tickers),
		strconv.Itoa(r.Priced),
		strconv.Itoa(r.Stale),
		strconv.Itoa(len(r.Unpriced)),
		strconv.Itoa(r.Alerts),
		strconv.FormatBool(r.Delivered),
	})
	table.Render()

	if len(r.Unpriced) > 0 {
		fmt.Fprintf(out, "Unpriced: %s\n", strings.Join(r.Unpriced, ", "))
	}
	if r.DeliveryErr != "" {
		fmt.Fprintf(out, "Delivery failed: %s\n", r.DeliveryErr)
	}
	if r.FallbackPath != "" {
		fmt.Fprintf(out, "Alerts saved to %s\n", r.FallbackPath)
	}
}
