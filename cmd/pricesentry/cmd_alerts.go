package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/modules/alerts"
)

func newAlertsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Inspect and export generated alerts",
	}
	cmd.AddCommand(newAlertsListCmd(a), newAlertsExportCmd(a))
	return cmd
}

func newAlertsListCmd(a *app) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var s domain.Session
			if session != "" {
				parsed, err := domain.ParseSession(session)
				if err != nil {
					return err
				}
				s = parsed
			}

			c, err := a.container(cmd.Context())
			if err != nil {
				return err
			}
			defer closeContainer(a, c)

			active, err := c.AlertRepo.Active(cmd.Context(), s)
			if err != nil {
				return err
			}
			printAlerts(cmd.OutOrStdout(), active)
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Only show one session (AM|PM)")
	return cmd
}

func printAlerts(out io.Writer, list []domain.Alert) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No active alerts")
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Session", "Category", "Symbol", "Action", "Price", "Threshold", "Profit %"})
	table.SetBorder(false)
	for _, al := range list {
		table.Append([]string{
			string(al.Session),
			string(al.Category),
			al.Symbol,
			string(al.Action),
			strconv.FormatFloat(al.CurrentPrice, 'f', 2, 64),
			strconv.FormatFloat(al.ThresholdCrossed, 'f', 2, 64),
			strconv.FormatFloat(al.ProfitPct, 'f', 2, 64),
		})
	}
	table.Render()
}

func newAlertsExportCmd(a *app) *cobra.Command {
	var (
		since string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export alert history as CSV",
		Example: `  pricesentry alerts export --since 2025-01-01 --out alerts.csv
  pricesentry alerts export > last-month.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from := time.Now().AddDate(0, 0, -30)
			if since != "" {
				parsed, err := time.ParseInLocation("2006-01-02", since, a.cfg.Location())
				if err != nil {
					return fmt.Errorf("invalid --since %q: %w", since, err)
				}
				from = parsed
			}

			c, err := a.container(cmd.Context())
			if err != nil {
				return err
			}
			defer closeContainer(a, c)

			history, err := c.AlertRepo.History(cmd.Context(), from)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := alerts.WriteCSV(w, history); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d alerts to %s\n", len(history), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "Earliest generation date (YYYY-MM-DD), 30 days ago if omitted")
	cmd.Flags().StringVar(&out, "out", "", "Write to a file instead of stdout")
	return cmd
}
