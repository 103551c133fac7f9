// Package observability owns the process loggers and the telemetry system.
package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"

	"github.com/theOGognf/finagg/internal/config"
)

var (
	// CLILogger is used for CLI commands (SIMPLE profile)
	CLILogger *logging.Logger

	// ServerLogger is used by serve (STRUCTURED profile)
	ServerLogger *logging.Logger
)

// InitCLILogger initializes the CLI logger. verbose forces DEBUG; otherwise
// cfg.Level applies. A STRUCTURED profile logs JSON to stderr instead.
func InitCLILogger(serviceName string, cfg config.LoggingConfig, verbose bool) {
	level := parseLogLevel(cfg.Level)
	if verbose {
		level = "DEBUG"
	}

	var (
		logger *logging.Logger
		err    error
	)
	switch {
	case strings.EqualFold(cfg.Profile, "structured"):
		logger, err = logging.New(structuredConfig(serviceName, level, "cli"))
	case level == "INFO":
		logger, err = logging.NewCLI(serviceName)
	default:
		logger, err = logging.New(&logging.LoggerConfig{
			Profile:      logging.ProfileSimple,
			DefaultLevel: level,
			Service:      serviceName,
			Environment:  "cli",
			Sinks:        stderrSink("console"),
		})
	}
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}

	CLILogger = logger
}

// InitServerLogger initializes the server logger with STRUCTURED profile.
func InitServerLogger(serviceName string, logLevel string) {
	logger, err := logging.New(structuredConfig(serviceName, parseLogLevel(logLevel), "production"))
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}

	ServerLogger = logger
}

// Logger returns the server logger when serving, else the CLI logger. It is
// nil before either is initialized.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

func structuredConfig(serviceName, level, environment string) *logging.LoggerConfig {
	return &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: level,
		Service:      serviceName,
		Environment:  environment,
		Middleware: []logging.MiddlewareConfig{{
			Name:    "correlation",
			Enabled: true,
			Order:   100,
			Config:  map[string]any{},
		}},
		Sinks:            stderrSink("json"),
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

// stderrSink logs uncolored to stderr so stdout stays clean for command output.
func stderrSink(format string) []logging.SinkConfig {
	return []logging.SinkConfig{{
		Type:    "console",
		Format:  format,
		Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
	}}
}

var levels = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// parseLogLevel maps a config level to a gofulmen severity, defaulting to
// INFO.
func parseLogLevel(level string) string {
	if severity, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return severity
	}
	return "INFO"
}

// exitWithCodeStderr exits with a semantic exit code before any logger exists.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}
