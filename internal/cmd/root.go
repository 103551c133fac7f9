package cmd

import (
	"errors"
	"io/fs"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/theOGognf/finagg/internal/config"
	"github.com/theOGognf/finagg/internal/observability"
	"github.com/theOGognf/finagg/internal/output"
	"github.com/theOGognf/finagg/internal/server/handlers"
)

var (
	cfgFile      string
	verbose      bool
	outputFormat string

	// appConfig is loaded once by initConfig before any command runs.
	appConfig *config.Config
)

// SetVersionInfo records the ldflags build metadata for the version command
// and the admin server.
func SetVersionInfo(version, commit, buildDate string) {
	handlers.SetBuild(handlers.Build{Version: version, Commit: commit, BuildDate: buildDate})
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Rate-limited financial data aggregation",
	Long: `finagg fetches economic and market data from BEA, FRED, SEC EDGAR,
Wikipedia index pages and Yahoo! Finance. Every API family shares one
process-wide guard that paces requests under the provider's published limits
and caches successful responses.

Use the subcommands to perform specific operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early so config loading does not emit metrics
	// to stdout. serve initializes the real exporter.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/finagg/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(output.FormatTable), "Output format: table|json|yaml|markdown")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())
	if err := config.BindEnv(viper.GetViper()); err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to bind environment", err)
	}

	var readErr error
	if cfgFile != "" {
		// Use config file from flag
		viper.SetConfigFile(cfgFile)
		readErr = viper.ReadInConfig()
		if readErr != nil {
			ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to read config file", readErr)
		}
	} else if path := config.DefaultConfigPath(); path != "" {
		viper.SetConfigFile(path)
		viper.SetConfigType("yaml")
		readErr = viper.ReadInConfig()
		if readErr != nil && !errors.Is(readErr, fs.ErrNotExist) {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to read config file", readErr)
		}
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to load configuration", err)
	}
	appConfig = cfg

	observability.InitCLILogger(config.AppName, cfg.Logging, verbose)

	if readErr == nil && viper.ConfigFileUsed() != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
	} else if verbose {
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	}
}

// selectedFormat parses the --output flag.
func selectedFormat() (output.Format, error) {
	return output.ParseFormat(outputFormat)
}
