package catalog

import (
	"context"
	"database/sql"
	"time"

	dbutil "github.com/llehouerou/earworm/internal/db"
)

// Cache stores candidate track lists in SQLite so a context does not hit the
// remote API on every game.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewCache creates a cache over an opened database (see db.Open).
func NewCache(db *sql.DB, ttl time.Duration) *Cache {
	return &Cache{db: db, ttl: ttl, now: time.Now}
}

// isExpired checks if a cached entry is expired.
func (c *Cache) isExpired(fetchedAt int64) bool {
	return fetchedAt < c.now().Add(-c.ttl).Unix()
}

// Get returns the cached tracks for a catalog context.
// Returns nil when nothing is cached or the entry is expired.
func (c *Cache) Get(ctx context.Context, catalogName, key string) ([]Track, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT track_id, title, artist, album, preview_url, duration_ms, fetched_at
		FROM catalog_tracks
		WHERE catalog = ? AND context_key = ?
		ORDER BY position ASC
	`, catalogName, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Track
	for rows.Next() {
		var (
			t          Track
			durationMs int64
			fetchedAt  int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.PreviewURL, &durationMs, &fetchedAt); err != nil {
			return nil, err
		}
		// All rows of an entry share one timestamp
		if c.isExpired(fetchedAt) {
			return nil, nil
		}
		t.Duration = time.Duration(durationMs) * time.Millisecond
		result = append(result, t)
	}

	return result, rows.Err()
}

// Set replaces the cached tracks for a catalog context.
func (c *Cache) Set(ctx context.Context, catalogName, key string, tracks []Track) error {
	now := c.now().Unix()
	return dbutil.WithTx(c.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM catalog_tracks WHERE catalog = ? AND context_key = ?`,
			catalogName, key,
		); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO catalog_tracks
				(catalog, context_key, position, track_id, title, artist, album, preview_url, duration_ms, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range tracks {
			if _, err := stmt.ExecContext(ctx,
				catalogName, key, i, t.ID, t.Title, t.Artist, t.Album, t.PreviewURL,
				t.Duration.Milliseconds(), now,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// CleanExpired removes all expired entries.
func (c *Cache) CleanExpired(ctx context.Context) error {
	expiry := c.now().Add(-c.ttl).Unix()
	_, err := c.db.ExecContext(ctx, `DELETE FROM catalog_tracks WHERE fetched_at < ?`, expiry)
	return err
}

// Cached decorates a Catalog, serving ListCandidateTracks from the cache.
// Searches always go to the wrapped catalog.
type Cached struct {
	Catalog
	cache *Cache
}

// WithCache wraps c so candidate lists are cached.
func WithCache(c Catalog, cache *Cache) *Cached {
	return &Cached{Catalog: c, cache: cache}
}

// ListCandidateTracks returns cached tracks when fresh, otherwise fetches and
// caches them. Cache failures never fail the call. Empty results are not
// cached so a transient outage does not stick.
func (c *Cached) ListCandidateTracks(ctx context.Context, cc Context) ([]Track, error) {
	key := cc.Key()
	if cached, err := c.cache.Get(ctx, c.Name(), key); err == nil && len(cached) > 0 {
		return cached, nil
	}

	tracks, err := c.Catalog.ListCandidateTracks(ctx, cc)
	if err != nil {
		return nil, err
	}

	if len(tracks) > 0 {
		_ = c.cache.Set(ctx, c.Name(), key, tracks)
	}
	return tracks, nil
}
