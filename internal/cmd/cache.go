package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theOGognf/finagg/internal/cache"
	apperrors "github.com/theOGognf/finagg/internal/errors"
	"github.com/theOGognf/finagg/internal/observability"
	"github.com/theOGognf/finagg/internal/output"
)

var cacheClearPrefix string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the HTTP response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show HTTP cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := selectedFormat()
		if err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
		return withCache(cmd.Context(), func(backend cache.Backend) error {
			stats, err := backend.Stats(cmd.Context())
			if err != nil {
				return apperrors.WrapDatabaseError(cmd.Context(), err, "failed to read cache stats")
			}
			return output.Write(cmd.OutOrStdout(), format, stats, output.CacheStats(stats))
		})
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired responses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(backend cache.Backend) error {
			removed, err := backend.Prune(cmd.Context())
			if err != nil {
				return apperrors.WrapDatabaseError(cmd.Context(), err, "failed to prune cache")
			}
			observability.CLILogger.Info("Pruned expired responses", zap.Int64("removed", removed))
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached responses",
	Long: `Delete every cached response, or only those whose URL starts with --prefix,
for example --prefix https://data.sec.gov.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(backend cache.Backend) error {
			removed, err := backend.Clear(cmd.Context(), cacheClearPrefix)
			if err != nil {
				return apperrors.WrapDatabaseError(cmd.Context(), err, "failed to clear cache")
			}
			observability.CLILogger.Info("Cleared cached responses",
				zap.Int64("removed", removed),
				zap.String("prefix", cacheClearPrefix))
			return nil
		})
	},
}

func withCache(ctx context.Context, fn func(backend cache.Backend) error) error {
	backend, err := cache.Open(ctx, appConfig)
	if err != nil {
		return apperrors.WrapDatabaseError(ctx, err, "failed to open http cache")
	}
	if backend == nil {
		return apperrors.NewConfigInvalidError(fmt.Sprintf("http cache is disabled (driver %q)", appConfig.HTTPCache.Driver))
	}
	defer backend.Close() // nolint:errcheck // best-effort cleanup

	return fn(backend)
}

func init() {
	cacheClearCmd.Flags().StringVar(&cacheClearPrefix, "prefix", "", "Only delete responses whose URL starts with this prefix")

	cacheCmd.AddCommand(cacheStatsCmd, cachePruneCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
