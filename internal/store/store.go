// Package store opens the libsql database that backs finagg's HTTP response
// cache. Local files and remote Turso databases are both supported.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/theOGognf/finagg/internal/config"
)

const driverName = "libsql"

// busyTimeout is how long a local writer waits on a locked database.
const busyTimeoutMs = 5000

// Store is an open libsql database.
type Store struct {
	DB    *sql.DB
	local bool
}

// location is a resolved DSN and whether it points at this machine.
type location struct {
	dsn   string
	local bool
}

// Open resolves cfg to a DSN, connects and pings. Local databases get WAL
// journaling and a single writer connection.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if d := strings.TrimSpace(cfg.Driver); d != "" && d != driverName {
		return nil, fmt.Errorf("unsupported store driver %q", d)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loc, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, loc.dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s := &Store{DB: db, local: loc.local}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	if !s.local {
		return nil
	}

	s.DB.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMs),
	} {
		var ignored any
		if err := s.DB.QueryRowContext(ctx, pragma).Scan(&ignored); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Local reports whether the database is a local file or in memory.
func (s *Store) Local() bool {
	return s != nil && s.local
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// resolve prefers a remote URL over a local path. A bare path becomes a
// file: DSN and its parent directory is created.
func resolve(cfg config.StoreConfig) (location, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		dsn, err := withAuthToken(raw, cfg.AuthToken)
		return location{dsn: dsn}, err
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return location{}, errors.New("store needs a path or url")
	case path == ":memory:":
		return location{dsn: path, local: true}, nil
	case strings.HasPrefix(path, "libsql:"):
		return location{dsn: path}, nil
	case strings.HasPrefix(path, "file:"):
		u, err := url.Parse(path)
		if err != nil {
			return location{}, fmt.Errorf("invalid store path: %w", err)
		}
		file := u.Path
		if file == "" {
			file = u.Opaque
		}
		if err := mkdirFor(strings.TrimPrefix(file, "//")); err != nil {
			return location{}, err
		}
		return location{dsn: path, local: true}, nil
	default:
		if err := mkdirFor(path); err != nil {
			return location{}, err
		}
		return location{dsn: "file:" + filepath.Clean(path), local: true}, nil
	}
}

func withAuthToken(dsn, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	q := u.Query()
	if q.Get("authToken") == "" {
		q.Set("authToken", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func mkdirFor(file string) error {
	dir := filepath.Dir(filepath.Clean(file))
	if file == "" || dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- cache directory under the user's data dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
