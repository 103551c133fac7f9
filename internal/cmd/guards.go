package cmd

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/theOGognf/finagg/internal/api"
	"github.com/theOGognf/finagg/internal/cache"
	apperrors "github.com/theOGognf/finagg/internal/errors"
	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/observability"
	"github.com/theOGognf/finagg/internal/output"
)

// session bundles the guard registry with the cache backend it writes to.
type session struct {
	guards  *api.Guards
	backend cache.Backend
}

// openSession opens the configured cache backend and builds the guard
// registry on top of it. Close the session when the command finishes.
func openSession(ctx context.Context) (*session, error) {
	backend, err := cache.Open(ctx, appConfig)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(ctx, err, "failed to open http cache")
	}

	var httpCache httpx.Cache
	if backend != nil {
		httpCache = backend
	}

	opts := []api.Option{}
	if observability.CLILogger != nil {
		opts = append(opts, api.WithLogger(observability.CLILogger))
	}

	return &session{
		guards:  api.NewGuards(appConfig, httpCache, opts...),
		backend: backend,
	}, nil
}

func (s *session) Close() {
	if s == nil || s.backend == nil {
		return
	}
	if err := s.backend.Close(); err != nil && observability.CLILogger != nil {
		observability.CLILogger.Warn("Failed to close http cache", zap.Error(err))
	}
}

// writeRecords prints a slice of API rows in the selected format. Table
// formats show only columns, or every field when columns is empty.
func writeRecords(w io.Writer, value any, columns ...string) error {
	format, err := selectedFormat()
	if err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if structuredOutput() {
		return output.Write(w, format, value, nil)
	}
	records, err := output.ToRecords(value, columns...)
	if err != nil {
		return err
	}
	return output.Write(w, format, value, records)
}

// structuredOutput reports whether --output asks for JSON or YAML.
func structuredOutput() bool {
	format, err := selectedFormat()
	return err == nil && (format == output.FormatJSON || format == output.FormatYAML)
}
