package store

import (
	"context"
	"errors"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version records how many
// have run. Append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS http_cache (
		key TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		header TEXT,
		body BLOB NOT NULL,
		stored_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_http_cache_expires ON http_cache(expires_at)`,
	`ALTER TABLE http_cache ADD COLUMN hits INTEGER NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS idx_http_cache_url ON http_cache(url)`,
}

// SchemaVersion is the user_version of a fully migrated database.
var SchemaVersion = len(migrations)

// Migrate applies pending migrations and returns the resulting version.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not open")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	version, err := s.version(ctx)
	if err != nil {
		return 0, err
	}
	if version > len(migrations) {
		return version, fmt.Errorf("store schema version %d is newer than this binary (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		if _, err := s.DB.ExecContext(ctx, migrations[i]); err != nil {
			return i, fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return i, fmt.Errorf("record migration %d: %w", i+1, err)
		}
	}
	return len(migrations), nil
}

func (s *Store) version(ctx context.Context) (int, error) {
	var v int
	if err := s.DB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
