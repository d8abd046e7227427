package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cratesync/internal/models"
)

// SearchCache memoizes remote search results keyed by normalized query.
//
// Entries have no TTL: a cached result is reused until a force-refresh run
// overwrites it or the track's title/artist changes (which changes the key).
// Safe for concurrent use; last writer wins on a key, which is acceptable
// because results for the same query are expected to be equivalent.
type SearchCache struct {
	db     *sql.DB
	ignore bool
	mu     sync.Mutex
}

const searchCacheSchema = `
CREATE TABLE IF NOT EXISTS search_cache (
	query      TEXT PRIMARY KEY,
	results    TEXT NOT NULL,
	fetched_at TIMESTAMP NOT NULL
);`

// NewSearchCache creates a cache on db, creating the schema if needed. When
// ignore is set every Lookup behaves as a miss, forcing fresh fetches that
// re-store over the stale entries.
func NewSearchCache(db *sql.DB, ignore bool) (*SearchCache, error) {
	if _, err := db.Exec(searchCacheSchema); err != nil {
		return nil, fmt.Errorf("failed to create search cache schema: %w", err)
	}
	return &SearchCache{db: db, ignore: ignore}, nil
}

// Lookup returns the cached candidates for query. The second return reports
// whether an entry was found; an ignore-cache run never finds one.
func (c *SearchCache) Lookup(query string) ([]models.RemoteCandidate, bool, error) {
	if c.ignore {
		return nil, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var raw string
	err := c.db.QueryRow("SELECT results FROM search_cache WHERE query = ?", query).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read search cache: %w", err)
	}

	var candidates []models.RemoteCandidate
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		// corrupt entry: treat as a miss so it gets refetched and overwritten
		return nil, false, nil
	}
	return candidates, true, nil
}

// Store saves candidates for query, overwriting any prior entry.
func (c *SearchCache) Store(query string, candidates []models.RemoteCandidate) error {
	raw, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("failed to encode candidates: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT INTO search_cache (query, results, fetched_at) VALUES (?, ?, ?) ON CONFLICT(query) DO UPDATE SET results = excluded.results, fetched_at = excluded.fetched_at",
		query, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write search cache: %w", err)
	}
	return nil
}

// Len reports the number of cached queries.
func (c *SearchCache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM search_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count search cache: %w", err)
	}
	return n, nil
}

// Clear drops every cached query.
func (c *SearchCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM search_cache"); err != nil {
		return fmt.Errorf("failed to clear search cache: %w", err)
	}
	return nil
}
