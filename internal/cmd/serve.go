package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/theOGognf/finagg/internal/api"
	"github.com/theOGognf/finagg/internal/config"
	apperrors "github.com/theOGognf/finagg/internal/errors"
	"github.com/theOGognf/finagg/internal/metrics"
	"github.com/theOGognf/finagg/internal/observability"
	"github.com/theOGognf/finagg/internal/server"
	"github.com/theOGognf/finagg/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server",
	Long: `Start the admin HTTP server: health probes, version, Prometheus metrics
and read-only views of the rate limit guards and the HTTP cache.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read and validate the config file (restart to apply it)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		observability.InitServerLogger(config.AppName, appConfig.Logging.Level)
		logger := observability.ServerLogger

		if err := observability.InitMetrics(appConfig.Metrics); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return apperrors.WrapConfigInvalid(cmd.Context(), err, "metrics initialization failed")
		}
		metrics.SetServerStartTime(time.Now().Unix())

		serverCfg := appConfig.Server
		if cmd.Flags().Changed("host") {
			serverCfg.Host = serverHost
		}
		if cmd.Flags().Changed("port") {
			serverCfg.Port = serverPort
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		hm := handlers.NewHealthManager(handlers.CurrentBuild().Version)
		if appConfig.Metrics.Enabled {
			hm.RegisterChecker("telemetry", handlers.HealthCheckFunc(func(ctx context.Context) error {
				if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
					return apperrors.NewInternalError("telemetry system not initialized")
				}
				return nil
			}))
		}
		if s.backend != nil {
			hm.RegisterChecker("http_cache", handlers.HealthCheckFunc(func(ctx context.Context) error {
				_, err := s.backend.Stats(ctx)
				return err
			}))
		}

		deps := server.Deps{
			Guards:   s.guards,
			Families: api.Families(),
			Health:   hm,
		}
		if s.backend != nil {
			deps.Cache = s.backend
		}
		srv := server.New(serverCfg, deps)

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", handlers.CurrentBuild().Version),
			zap.String("addr", srv.Addr()),
			zap.Bool("metrics_enabled", appConfig.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()),
			zap.Bool("http_cache", s.backend != nil))

		shutdownTimeout := serverCfg.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: the server stops before the logger flushes.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return apperrors.NewInternalError("server shutdown failed: " + err.Error())
			}
			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: reloading config")
			if viper.ConfigFileUsed() == "" {
				logger.Info("No config file in use - nothing to reload")
				return nil
			}
			if err := viper.ReadInConfig(); err != nil {
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return apperrors.WrapConfigInvalid(ctx, err, "config reload failed")
			}
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return apperrors.WrapConfigInvalid(ctx, err, "config reload failed")
			}
			logger.Info("Configuration reloaded",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Int("rate_limit_overrides", len(cfg.RateLimits)))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 2)
		go func() {
			errChan <- srv.Start()
		}()
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return apperrors.NewInternalError("server error: " + err.Error())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port (overrides server.port)")
}
