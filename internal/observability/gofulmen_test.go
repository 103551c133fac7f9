package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theOGognf/finagg/internal/config"
	"github.com/theOGognf/finagg/internal/observability"
)

func TestInitCLILogger(t *testing.T) {
	t.Cleanup(func() {
		observability.CLILogger = nil
		observability.ServerLogger = nil
	})

	cases := map[string]struct {
		cfg     config.LoggingConfig
		verbose bool
	}{
		"Default":    {cfg: config.LoggingConfig{Level: "info", Profile: "simple"}},
		"Verbose":    {cfg: config.LoggingConfig{Level: "info"}, verbose: true},
		"WarnLevel":  {cfg: config.LoggingConfig{Level: "warn"}},
		"Structured": {cfg: config.LoggingConfig{Level: "debug", Profile: "STRUCTURED"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			observability.CLILogger = nil
			observability.InitCLILogger("finagg-test", tc.cfg, tc.verbose)
			require.NotNil(t, observability.CLILogger)
			observability.CLILogger.Info("throttling requests", zap.String("guard", "sec"))
		})
	}
}

func TestLoggerPrefersServer(t *testing.T) {
	t.Cleanup(func() {
		observability.CLILogger = nil
		observability.ServerLogger = nil
	})

	observability.CLILogger = nil
	observability.ServerLogger = nil
	assert.Nil(t, observability.Logger())

	observability.InitCLILogger("finagg-test", config.LoggingConfig{}, false)
	assert.Same(t, observability.CLILogger, observability.Logger())

	observability.InitServerLogger("finagg-test", "info")
	assert.Same(t, observability.ServerLogger, observability.Logger())
}

func TestInitMetricsDisabled(t *testing.T) {
	require.NoError(t, observability.InitMetrics(config.MetricsConfig{Enabled: false, Port: 9090}))
	assert.Nil(t, observability.TelemetrySystem)
}

func TestEmbeddedCrucible(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
	assert.NotEmpty(t, crucible.GetVersionString())
}
