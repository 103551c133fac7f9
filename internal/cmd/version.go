package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theOGognf/finagg/internal/config"
	apperrors "github.com/theOGognf/finagg/internal/errors"
	"github.com/theOGognf/finagg/internal/output"
	"github.com/theOGognf/finagg/internal/server/handlers"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the finagg version. --extended adds the commit, build date, Go
runtime and gofulmen/Crucible versions; -o json or -o yaml prints the same
report the admin server serves on /version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := selectedFormat()
		if err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
		report := handlers.CurrentVersion()
		w := cmd.OutOrStdout()
		if structuredOutput() {
			return output.Write(w, format, report, nil)
		}

		fmt.Fprintf(w, "%s %s\n", config.AppName, report.Version)
		if !extended {
			return nil
		}
		fmt.Fprintf(w, "Commit: %s\n", report.Commit)
		fmt.Fprintf(w, "Built: %s\n", report.BuildDate)
		fmt.Fprintf(w, "Go: %s (%s)\n\n", report.Go, report.Platform)
		fmt.Fprintf(w, "Gofulmen: %s\n", report.Gofulmen)
		fmt.Fprintf(w, "Crucible: %s\n", report.Crucible)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
