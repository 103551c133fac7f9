package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theOGognf/finagg/internal/api"
	apperrors "github.com/theOGognf/finagg/internal/errors"
	"github.com/theOGognf/finagg/internal/output"
	"github.com/theOGognf/finagg/internal/ratelimit"
)

var rateLimitState bool

var rateLimitCmd = &cobra.Command{
	Use:     "ratelimit",
	Aliases: []string{"rate-limit"},
	Short:   "Inspect API guards",
}

// rateLimitReport is the structured form of ratelimit show.
type rateLimitReport struct {
	Limits map[string][]ratelimit.Spec `json:"limits" yaml:"limits"`
	Guards []ratelimit.GuardSnapshot   `json:"guards,omitempty" yaml:"guards,omitempty"`
}

var rateLimitShowCmd = &cobra.Command{
	Use:   "show [guard...]",
	Short: "Show the limits in effect for each API family",
	Long: `Show the limits each guard enforces: the rate_limits override from config
when one exists, otherwise the built-in limits. With --state the guards are
built and their limiter snapshots are printed as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := selectedFormat()
		if err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}

		names := api.Families()
		if len(args) > 0 {
			names = make([]string, 0, len(args))
			for _, arg := range args {
				name := strings.ToLower(strings.TrimSpace(arg))
				if _, err := api.LookupFamily(name); err != nil {
					return apperrors.NewInvalidInputError(err.Error())
				}
				names = append(names, name)
			}
		}

		guards := api.NewGuards(appConfig, nil)
		report := rateLimitReport{Limits: make(map[string][]ratelimit.Spec, len(names))}
		for _, name := range names {
			specs, err := guards.Limits(name)
			if err != nil {
				return err
			}
			report.Limits[name] = specs
			if rateLimitState {
				if _, err := guards.Get(name); err != nil {
					return err
				}
			}
		}
		if rateLimitState {
			report.Guards = guards.Snapshots()
		}

		return writeRateLimitReport(cmd.OutOrStdout(), format, report)
	},
}

func writeRateLimitReport(w io.Writer, format output.Format, report rateLimitReport) error {
	if format == output.FormatJSON || format == output.FormatYAML {
		return output.Write(w, format, report, nil)
	}
	if err := output.Write(w, format, report, output.Limits(report.Limits)); err != nil {
		return err
	}
	if len(report.Guards) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return output.Write(w, format, report.Guards, output.Snapshots(report.Guards))
}

func init() {
	rateLimitShowCmd.Flags().BoolVar(&rateLimitState, "state", false, "Also print live limiter state")

	rateLimitCmd.AddCommand(rateLimitShowCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
