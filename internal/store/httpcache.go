package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/theOGognf/finagg/internal/httpx"
)

// HTTPCache stores successful API responses in the http_cache table.
type HTTPCache struct {
	store *Store
	Clock func() time.Time
}

var _ httpx.Cache = (*HTTPCache)(nil)

// CacheStats summarizes the http_cache table.
type CacheStats struct {
	Entries int64 `json:"entries" yaml:"entries"`
	Expired int64 `json:"expired" yaml:"expired"`
	Bytes   int64 `json:"bytes" yaml:"bytes"`
	Hits    int64 `json:"hits" yaml:"hits"`
}

// NewHTTPCache returns a cache backed by s. Call Migrate first.
func NewHTTPCache(s *Store) *HTTPCache {
	return &HTTPCache{store: s}
}

// Get returns the unexpired entry for key, or nil on a miss.
func (c *HTTPCache) Get(ctx context.Context, key string) (*httpx.CacheEntry, error) {
	db, err := c.db()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("cache key is required")
	}

	var (
		rawURL     string
		statusCode int
		header     sql.NullString
		body       []byte
		storedAt   int64
		expiresAt  int64
	)

	row := db.QueryRowContext(ctx, `
		SELECT url, status_code, header, body, stored_at, expires_at
		FROM http_cache
		WHERE key = ? AND expires_at > ?
	`, key, c.now().Unix())

	if err := row.Scan(&rawURL, &statusCode, &header, &body, &storedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached response: %w", err)
	}

	entry := &httpx.CacheEntry{
		Key:        key,
		URL:        rawURL,
		StatusCode: statusCode,
		Body:       body,
		StoredAt:   time.Unix(storedAt, 0).UTC(),
		ExpiresAt:  time.Unix(expiresAt, 0).UTC(),
	}
	if header.Valid && header.String != "" {
		var h http.Header
		if err := json.Unmarshal([]byte(header.String), &h); err != nil {
			return nil, fmt.Errorf("decode cached header: %w", err)
		}
		entry.Header = h
	}

	if _, err := db.ExecContext(ctx, `UPDATE http_cache SET hits = hits + 1 WHERE key = ?`, key); err != nil {
		return nil, fmt.Errorf("count cache hit: %w", err)
	}

	return entry, nil
}

// Set stores entry for ttl. A non-positive ttl is a no-op.
func (c *HTTPCache) Set(ctx context.Context, entry *httpx.CacheEntry, ttl time.Duration) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 || entry == nil {
		return nil
	}
	if strings.TrimSpace(entry.Key) == "" {
		return errors.New("cache key is required")
	}

	header, err := json.Marshal(entry.Header)
	if err != nil {
		return fmt.Errorf("encode cached header: %w", err)
	}

	now := c.now()
	expires := now.Add(ttl)

	_, err = db.ExecContext(ctx, `
		INSERT INTO http_cache (key, url, status_code, header, body, stored_at, expires_at, hits)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET
			url = excluded.url,
			status_code = excluded.status_code,
			header = excluded.header,
			body = excluded.body,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at,
			hits = 0
	`, entry.Key, entry.URL, entry.StatusCode, string(header), entry.Body, now.Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}

	return nil
}

// Prune deletes expired entries and reports how many were removed.
func (c *HTTPCache) Prune(ctx context.Context) (int64, error) {
	return c.delete(ctx, "WHERE expires_at <= ?", c.now().Unix())
}

// Clear deletes entries whose URL starts with prefix, or all entries when
// prefix is empty.
func (c *HTTPCache) Clear(ctx context.Context, prefix string) (int64, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return c.delete(ctx, "")
	}
	return c.delete(ctx, "WHERE url LIKE ?", prefix+"%")
}

// Stats counts entries, expired entries, stored bytes and hits.
func (c *HTTPCache) Stats(ctx context.Context) (CacheStats, error) {
	db, err := c.db()
	if err != nil {
		return CacheStats{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var stats CacheStats
	row := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(LENGTH(body)), 0),
			COALESCE(SUM(hits), 0)
		FROM http_cache
	`, c.now().Unix())
	if err := row.Scan(&stats.Entries, &stats.Expired, &stats.Bytes, &stats.Hits); err != nil {
		return CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

func (c *HTTPCache) delete(ctx context.Context, where string, args ...any) (int64, error) {
	db, err := c.db()
	if err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM http_cache
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete cached responses: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete cached responses: %w", err)
	}
	return affected, nil
}

func (c *HTTPCache) db() (*sql.DB, error) {
	if c == nil || c.store == nil || c.store.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	return c.store.DB, nil
}

func (c *HTTPCache) now() time.Time {
	if c.Clock != nil {
		return c.Clock().UTC()
	}
	return time.Now().UTC()
}
