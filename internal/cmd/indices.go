package cmd

import (
	"github.com/spf13/cobra"

	"github.com/theOGognf/finagg/internal/api/indices"
	apperrors "github.com/theOGognf/finagg/internal/errors"
)

var (
	indicesIndex       string
	indicesTickersOnly bool
)

var indicesCmd = &cobra.Command{
	Use:   "indices",
	Short: "Scrape index membership from Wikipedia",
}

var indicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the constituents of an index, or the union of all tickers",
	Long: `List the constituents of the DJIA, Nasdaq-100 or S&P 500 as published on
Wikipedia. Without --index the sorted union of every index's tickers is printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			index indices.Index
			err   error
		)
		if indicesIndex != "" {
			index, err = indices.ParseIndex(indicesIndex)
			if err != nil {
				return apperrors.NewInvalidInputError(err.Error())
			}
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := s.guards.Indices()
		if err != nil {
			return err
		}

		if index == "" {
			tickers, err := client.TickerSet(cmd.Context())
			if err != nil {
				return err
			}
			return writeTickers(cmd, tickers)
		}

		if indicesTickersOnly {
			tickers, err := client.Tickers(cmd.Context(), index)
			if err != nil {
				return err
			}
			return writeTickers(cmd, tickers)
		}

		constituents, err := client.Constituents(cmd.Context(), index)
		if err != nil {
			return err
		}
		return writeRecords(cmd.OutOrStdout(), constituents, "ticker", "company")
	},
}

func writeTickers(cmd *cobra.Command, tickers []string) error {
	rows := make([]map[string]string, 0, len(tickers))
	for _, ticker := range tickers {
		rows = append(rows, map[string]string{"ticker": ticker})
	}
	if structuredOutput() {
		return writeRecords(cmd.OutOrStdout(), tickers)
	}
	return writeRecords(cmd.OutOrStdout(), rows, "ticker")
}

func init() {
	indicesListCmd.Flags().StringVar(&indicesIndex, "index", "", "Index: djia|nasdaq100|sp500 (default all)")
	indicesListCmd.Flags().BoolVar(&indicesTickersOnly, "tickers-only", false, "Print only ticker symbols")

	indicesCmd.AddCommand(indicesListCmd)
	rootCmd.AddCommand(indicesCmd)
}
