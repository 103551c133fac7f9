package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/theOGognf/finagg/internal/api/yfinance"
)

var (
	yfStart    string
	yfEnd      string
	yfInterval string
)

var yfinanceCmd = &cobra.Command{
	Use:   "yfinance",
	Short: "Fetch price history from Yahoo! Finance",
}

var yfinanceHistoryCmd = &cobra.Command{
	Use:   "history <ticker>",
	Short: "Fetch split- and dividend-adjusted OHLCV bars",
	Long: `Fetch adjusted OHLCV bars from the Yahoo! Finance chart API through the
shared yfinance guard. Dates are YYYY-MM-DD; omit both for the full history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := s.guards.YFinance()
		if err != nil {
			return err
		}
		bars, err := client.History(cmd.Context(), strings.ToUpper(args[0]), yfStart, yfEnd, yfInterval)
		if err != nil {
			return err
		}
		return writeRecords(cmd.OutOrStdout(), bars, barColumns...)
	},
}

var barColumns = []string{"date", "open", "high", "low", "close", "volume", "ticker"}

func init() {
	yfinanceHistoryCmd.Flags().StringVar(&yfStart, "start", "", "First date (YYYY-MM-DD)")
	yfinanceHistoryCmd.Flags().StringVar(&yfEnd, "end", "", "Last date (YYYY-MM-DD)")
	yfinanceHistoryCmd.Flags().StringVar(&yfInterval, "interval", yfinance.DefaultInterval, "Bar interval, e.g. 1d, 1wk, 1mo")

	yfinanceCmd.AddCommand(yfinanceHistoryCmd)
	rootCmd.AddCommand(yfinanceCmd)
}
