package main

import (
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/modules/pricing"
)

func newPricesCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "List cached prices and whether they are still fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter domain.Category
			if category != "" {
				parsed, err := domain.ParseCategory(category)
				if err != nil {
					return err
				}
				filter = parsed
			}

			c, err := a.container(cmd.Context())
			if err != nil {
				return err
			}
			defer closeContainer(a, c)

			printPrices(cmd.OutOrStdout(), c.Cache, filter)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only show one category (daily|digitalassets|etfs|ideas)")
	return cmd
}

func printPrices(out io.Writer, cache *pricing.Cache, filter domain.Category) {
	entries := cache.Entries()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		return entries[i].Symbol < entries[j].Symbol
	})

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Category", "Symbol", "Price", "Provider", "Fetched", "Fresh"})
	table.SetBorder(false)
	for _, e := range entries {
		if filter != "" && e.Category != filter {
			continue
		}
		_, fresh := cache.Fresh(e.Symbol, e.Category)
		table.Append([]string{
			string(e.Category),
			e.Symbol,
			strconv.FormatFloat(e.Price, 'f', 2, 64),
			string(e.Provider),
			e.FetchedAt.Format("2006-01-02 15:04"),
			yesNo(fresh),
		})
	}
	table.Render()
}
