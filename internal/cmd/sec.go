package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theOGognf/finagg/internal/api/sec"
	apperrors "github.com/theOGognf/finagg/internal/errors"
)

var (
	secExchanges bool
	secTaxonomy  string
	secTag       string
	secUnits     string
	secYear      int
	secQuarter   int
	secInstant   bool
)

var secCmd = &cobra.Command{
	Use:   "sec",
	Short: "Query SEC EDGAR",
	Long: `Query SEC EDGAR through the shared sec guard (9 requests per second by default).

Requires credentials.sec_user_agent or SEC_API_USER_AGENT, for example
"Jane Doe jane@example.com". Companies can be given by ticker or CIK.`,
}

var secTickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "List company tickers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSEC(cmd, func(ctx context.Context, client *sec.Client) error {
			if secExchanges {
				exchanges, err := client.Exchanges(ctx)
				if err != nil {
					return err
				}
				return writeRecords(cmd.OutOrStdout(), exchanges, "cik", "ticker", "name", "exchange")
			}
			tickers, err := client.Tickers(ctx)
			if err != nil {
				return err
			}
			return writeRecords(cmd.OutOrStdout(), tickers, "cik", "ticker", "title")
		})
	},
}

var secFactsCmd = &cobra.Command{
	Use:   "facts <ticker|cik>",
	Short: "Fetch every XBRL fact a company reported",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSEC(cmd, func(ctx context.Context, client *sec.Client) error {
			cik, err := resolveCIK(ctx, client, args[0])
			if err != nil {
				return err
			}
			facts, err := client.CompanyFacts(ctx, cik)
			if err != nil {
				return err
			}
			return writeRecords(cmd.OutOrStdout(), facts, factColumns...)
		})
	},
}

var secConceptCmd = &cobra.Command{
	Use:   "concept <ticker|cik>",
	Short: "Fetch the facts a company reported for one tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSEC(cmd, func(ctx context.Context, client *sec.Client) error {
			cik, err := resolveCIK(ctx, client, args[0])
			if err != nil {
				return err
			}
			facts, err := client.CompanyConcept(ctx, cik, secTaxonomy, secTag)
			if err != nil {
				return err
			}
			return writeRecords(cmd.OutOrStdout(), facts, factColumns...)
		})
	},
}

var secFramesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Fetch one fact per company for a calendar period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSEC(cmd, func(ctx context.Context, client *sec.Client) error {
			frame, err := client.Frames(ctx, secTaxonomy, secTag, secUnits, secYear, secQuarter, secInstant)
			if err != nil {
				return err
			}
			if structuredOutput() {
				return writeRecords(cmd.OutOrStdout(), frame)
			}
			return writeRecords(cmd.OutOrStdout(), frame.Data, "cik", "entityName", "loc", "end", "val")
		})
	},
}

var secSubmissionsCmd = &cobra.Command{
	Use:   "submissions <ticker|cik>",
	Short: "Show a company's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSEC(cmd, func(ctx context.Context, client *sec.Client) error {
			cik, err := resolveCIK(ctx, client, args[0])
			if err != nil {
				return err
			}
			sub, err := client.Submissions(ctx, cik)
			if err != nil {
				return err
			}
			if structuredOutput() {
				return writeRecords(cmd.OutOrStdout(), sub)
			}
			return writeRecords(cmd.OutOrStdout(), []*sec.Submissions{sub},
				"cik", "name", "tickers", "exchanges", "sicDescription", "fiscalYearEnd")
		})
	},
}

var secCIKCmd = &cobra.Command{
	Use:   "cik <ticker>",
	Short: "Print the 10-digit CIK of a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSEC(cmd, func(ctx context.Context, client *sec.Client) error {
			cik, err := client.LookupCIK(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write([]byte(cik + "\n"))
			return err
		})
	},
}

var factColumns = []string{"taxonomy", "tag", "units", "end", "val", "fy", "fp", "form", "filed"}

func withSEC(cmd *cobra.Command, fn func(ctx context.Context, client *sec.Client) error) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	client, err := s.guards.SEC()
	if err != nil {
		return err
	}
	return fn(cmd.Context(), client)
}

// resolveCIK accepts a CIK with or without leading zeros, or a ticker.
func resolveCIK(ctx context.Context, client *sec.Client, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperrors.NewInvalidInputError("ticker or CIK is required")
	}
	if strings.Trim(value, "0123456789") == "" {
		return sec.NormalizeCIK(value), nil
	}
	return client.LookupCIK(ctx, value)
}

func init() {
	secTickersCmd.Flags().BoolVar(&secExchanges, "exchanges", false, "Include the listing exchange")

	for _, c := range []*cobra.Command{secConceptCmd, secFramesCmd} {
		c.Flags().StringVar(&secTaxonomy, "taxonomy", "us-gaap", "XBRL taxonomy")
		c.Flags().StringVar(&secTag, "tag", "", "XBRL tag, e.g. EarningsPerShareBasic")
		_ = c.MarkFlagRequired("tag")
	}
	secFramesCmd.Flags().StringVar(&secUnits, "units", "USD", "Units, e.g. USD or USD/shares")
	secFramesCmd.Flags().IntVar(&secYear, "year", 0, "Calendar year")
	secFramesCmd.Flags().IntVar(&secQuarter, "quarter", 0, "Calendar quarter (0 for the whole year)")
	secFramesCmd.Flags().BoolVar(&secInstant, "instant", false, "Use the instantaneous frame")
	_ = secFramesCmd.MarkFlagRequired("year")

	secCmd.AddCommand(secTickersCmd, secFactsCmd, secConceptCmd, secFramesCmd, secSubmissionsCmd, secCIKCmd)
	rootCmd.AddCommand(secCmd)
}
