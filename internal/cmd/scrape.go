package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theOGognf/finagg/internal/api/indices"
	"github.com/theOGognf/finagg/internal/api/sec"
	"github.com/theOGognf/finagg/internal/api/yfinance"
	apperrors "github.com/theOGognf/finagg/internal/errors"
	"github.com/theOGognf/finagg/internal/observability"
	"github.com/theOGognf/finagg/internal/scrape"
)

var (
	scrapeTickers         []string
	scrapeIndex           string
	scrapeWorkers         int
	scrapeContinueOnError bool
	scrapeTag             string
	scrapeTaxonomy        string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch data for many tickers concurrently",
	Long: `Fan a fetch out over many tickers with a pool of workers. Every worker
shares the API family's guard, so the pool as a whole stays under the
provider's limits no matter how many workers run.

Tickers come from --tickers, or from an index with --index.`,
}

var scrapeSECFactsCmd = &cobra.Command{
	Use:   "sec-facts",
	Short: "Fetch XBRL facts for many companies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := s.guards.SEC()
		if err != nil {
			return err
		}
		tickers, err := scrapeTickerList(cmd.Context(), s)
		if err != nil {
			return err
		}

		result, runErr := scrape.Run(cmd.Context(), tickers, scrapeOptions("sec-facts"),
			func(ctx context.Context, ticker string) ([]sec.Fact, error) {
				cik, err := client.LookupCIK(ctx, ticker)
				if err != nil {
					return nil, err
				}
				if scrapeTag != "" {
					return client.CompanyConcept(ctx, cik, scrapeTaxonomy, scrapeTag)
				}
				return client.CompanyFacts(ctx, cik)
			})

		var facts []sec.Fact
		for _, values := range result.Values {
			facts = append(facts, values...)
		}
		return finishScrape(cmd, "sec-facts", result.Tickers, result.Succeeded(), result.Failed(), runErr, result.Err(),
			func() error {
				return writeRecords(cmd.OutOrStdout(), facts, append([]string{"cik"}, factColumns...)...)
			})
	},
}

var scrapeYFinanceCmd = &cobra.Command{
	Use:   "yfinance",
	Short: "Fetch price history for many tickers",
	Args:  cobra.NoArgs,
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
		tickers, err := scrapeTickerList(cmd.Context(), s)
		if err != nil {
			return err
		}

		result, runErr := scrape.Run(cmd.Context(), tickers, scrapeOptions("yfinance"),
			func(ctx context.Context, ticker string) ([]yfinance.Bar, error) {
				return client.History(ctx, ticker, yfStart, yfEnd, yfInterval)
			})

		var bars []yfinance.Bar
		for _, values := range result.Values {
			bars = append(bars, values...)
		}
		return finishScrape(cmd, "yfinance", result.Tickers, result.Succeeded(), result.Failed(), runErr, result.Err(),
			func() error { return writeRecords(cmd.OutOrStdout(), bars, barColumns...) })
	},
}

func scrapeOptions(job string) scrape.Options {
	workers := scrapeWorkers
	if workers <= 0 {
		workers = appConfig.Workers
	}
	return scrape.Options{
		Job:             job,
		Workers:         workers,
		ContinueOnError: scrapeContinueOnError,
	}
}

// scrapeTickerList resolves --tickers, falling back to --index.
func scrapeTickerList(ctx context.Context, s *session) ([]string, error) {
	tickers := scrape.NormalizeTickers(scrapeTickers)
	if len(tickers) > 0 {
		return tickers, nil
	}
	if scrapeIndex == "" {
		return nil, apperrors.NewInvalidInputError("provide --tickers or --index")
	}

	client, err := s.guards.Indices()
	if err != nil {
		return nil, err
	}
	if scrapeIndex == "all" {
		return client.TickerSet(ctx)
	}
	index, err := indices.ParseIndex(scrapeIndex)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	return client.Tickers(ctx, index)
}

// finishScrape logs the summary, writes whatever succeeded and reports the
// failure that stopped the run, if any.
func finishScrape(cmd *cobra.Command, job string, tickers []string, succeeded int, failed []string, runErr, tickerErrs error, write func() error) error {
	if logger := observability.CLILogger; logger != nil {
		fields := []zap.Field{
			zap.String("job", job),
			zap.Int("tickers", len(tickers)),
			zap.Int("succeeded", succeeded),
			zap.Int("failed", len(failed)),
		}
		if len(failed) > 0 {
			fields = append(fields, zap.Strings("failed_tickers", failed))
		}
		logger.Info("Scrape finished", fields...)
		if tickerErrs != nil {
			logger.Debug("Scrape failures", zap.Error(tickerErrs))
		}
	}

	if err := write(); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if succeeded == 0 && len(tickers) > 0 {
		return fmt.Errorf("%s: every ticker failed: %w", job, tickerErrs)
	}
	return nil
}

func init() {
	scrapeCmd.PersistentFlags().StringSliceVarP(&scrapeTickers, "tickers", "t", nil, "Comma-separated tickers")
	scrapeCmd.PersistentFlags().StringVar(&scrapeIndex, "index", "", "Take tickers from an index: djia|nasdaq100|sp500|all")
	scrapeCmd.PersistentFlags().IntVarP(&scrapeWorkers, "workers", "w", 0, "Worker count (default from config workers)")
	scrapeCmd.PersistentFlags().BoolVar(&scrapeContinueOnError, "continue-on-error", false, "Record failed tickers instead of stopping")

	scrapeSECFactsCmd.Flags().StringVar(&scrapeTaxonomy, "taxonomy", "us-gaap", "XBRL taxonomy used with --tag")
	scrapeSECFactsCmd.Flags().StringVar(&scrapeTag, "tag", "", "Fetch only this XBRL tag instead of every fact")

	scrapeYFinanceCmd.Flags().StringVar(&yfStart, "start", "", "First date (YYYY-MM-DD)")
	scrapeYFinanceCmd.Flags().StringVar(&yfEnd, "end", "", "Last date (YYYY-MM-DD)")
	scrapeYFinanceCmd.Flags().StringVar(&yfInterval, "interval", yfinance.DefaultInterval, "Bar interval, e.g. 1d, 1wk, 1mo")

	scrapeCmd.AddCommand(scrapeSECFactsCmd, scrapeYFinanceCmd)
	rootCmd.AddCommand(scrapeCmd)
}
