package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/modules/tickers"
)

func newTickersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickers",
		Short: "Manage the tracked ticker universe",
	}
	cmd.AddCommand(newTickersListCmd(a), newTickersAddCmd(a), newTickersImportCmd(a))
	return cmd
}

func newTickersListCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked tickers with their ranges and session prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.container(cmd.Context())
			if err != nil {
				return err
			}
			defer closeContainer(a, c)

			var list []domain.Ticker
			if category != "" {
				cat, err := domain.ParseCategory(category)
				if err != nil {
					return err
				}
				list, err = c.TickerRepo.ListByCategory(cmd.Context(), cat)
				if err != nil {
					return err
				}
			} else {
				list, err = c.TickerRepo.List(cmd.Context())
				if err != nil {
					return err
				}
			}
			printTickers(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only show one category")
	return cmd
}

func printTickers(out io.Writer, list []domain.Ticker) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Category", "Symbol", "Name", "Sentiment", "Buy", "Sell", "AM", "PM"})
	table.SetBorder(false)
	for _, t := range list {
		table.Append([]string{
			string(t.Category),
			t.Symbol,
			t.Name,
			string(t.Sentiment),
			optPrice(t.BuyTrade),
			optPrice(t.SellTrade),
			optPrice(t.AMPrice),
			optPrice(t.PMPrice),
		})
	}
	table.Render()
}

func optPrice(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func newTickersAddCmd(a *app) *cobra.Command {
	var (
		name      string
		category  string
		sentiment string
		buy       float64
		sell      float64
	)

	cmd := &cobra.Command{
		Use:     "add SYMBOL",
		Short:   "Add or update a ticker",
		Args:    cobra.ExactArgs(1),
		Example: `  pricesentry tickers add AAPL --category daily --sentiment bullish --buy 170 --sell 185`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			sent, err := domain.ParseSentiment(sentiment)
			if err != nil {
				return err
			}

			t := domain.Ticker{
				Symbol:    strings.ToUpper(strings.TrimSpace(args[0])),
				Name:      name,
				Category:  cat,
				Sentiment: sent,
			}
			if cmd.Flags().Changed("buy") {
				t.BuyTrade = &buy
			}
			if cmd.Flags().Changed("sell") {
				t.SellTrade = &sell
			}

			c, err := a.container(cmd.Context())
			if err != nil {
				return err
			}
			defer closeContainer(a, c)

			if _, err := c.TickerRepo.Upsert(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", t.Symbol, t.Category)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Company or asset name")
	cmd.Flags().StringVar(&category, "category", string(domain.CategoryDaily), "daily|digitalassets|etfs|ideas")
	cmd.Flags().StringVar(&sentiment, "sentiment", string(domain.SentimentNeutral), "bullish|bearish|neutral")
	cmd.Flags().Float64Var(&buy, "buy", 0, "Analyst buy trade level")
	cmd.Flags().Float64Var(&sell, "sell", 0, "Analyst sell trade level")
	return cmd
}

func newTickersImportCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tickers from a CSV file",
		Long: `Import tickers from a CSV file with the header
ticker,name,category,sentiment,buy_trade,sell_trade. Existing tickers are
updated in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			list, err := tickers.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			c, err := a.container(cmd.Context())
			if err != nil {
				return err
			}
			defer closeContainer(a, c)

			n, err := c.TickerRepo.Import(cmd.Context(), list)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tickers\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
