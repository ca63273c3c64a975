package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aristath/pricesentry/internal/modules/market_hours"
)

func newCalendarCmd(a *app) *cobra.Command {
	var (
		date string
		days int
	)

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show NYSE open days and holidays",
		Example: `  pricesentry calendar
  pricesentry calendar --date 2025-12-22 --days 14`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			loc := a.cfg.Location()
			start := time.Now().In(loc)
			if date != "" {
				parsed, err := time.ParseInLocation("2006-01-02", date, loc)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
				start = parsed
			}
			printCalendar(cmd.OutOrStdout(), market_hours.NewCalendar(), start, days)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "First day to show (YYYY-MM-DD), today if omitted")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to show")
	return cmd
}

func printCalendar(out io.Writer, cal *market_hours.Calendar, start time.Time, days int) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Date", "Day", "Open", "First Of Week", "Holiday"})
	table.SetBorder(false)

	for i := 0; i < days; i++ {
		st := cal.Status(start.AddDate(0, 0, i))
		table.Append([]string{
			st.Date,
			st.Weekday,
			yesNo(st.Open),
			yesNo(st.FirstDayOfWeek),
			st.Holiday,
		})
	}
	table.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
