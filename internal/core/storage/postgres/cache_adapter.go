package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	queryCacheGet = `
		SELECT payload FROM shared_cache
		WHERE cache_key = $1 AND expires_at > $2
	`

	queryCacheSet = `
		INSERT INTO shared_cache (cache_key, payload, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key)
		DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at
	`

	queryCacheDelete = `DELETE FROM shared_cache WHERE cache_key = $1`
)

// CacheAdapter implements storage.SharedCache over a plain table, giving all
// service instances one shared tier without an extra infrastructure
// dependency. Entries are advisory projections; expiry is enforced on read
// and stale rows are overwritten on the next set.
type CacheAdapter struct {
	db    *sql.DB
	nowFn func() time.Time
}

// NewCacheAdapter creates a CacheAdapter sharing the given connection pool.
func NewCacheAdapter(db *sql.DB) *CacheAdapter {
	return &CacheAdapter{
		db:    db,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the payload for key if present and unexpired.
func (a *CacheAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := a.db.QueryRowContext(ctx, queryCacheGet, key, a.nowFn()).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("shared cache get %q: %w", key, err)
	}
	return payload, true, nil
}

// Set stores the payload under key with the given time-to-live.
func (a *CacheAdapter) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	_, err := a.db.ExecContext(ctx, queryCacheSet, key, payload, a.nowFn().Add(ttl))
	if err != nil {
		return fmt.Errorf("shared cache set %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key if present.
func (a *CacheAdapter) Delete(ctx context.Context, key string) error {
	_, err := a.db.ExecContext(ctx, queryCacheDelete, key)
	if err != nil {
		return fmt.Errorf("shared cache delete %q: %w", key, err)
	}
	return nil
}
