// Package postgres persists memoized analysis results so warm caches survive
// restarts. Only derived results are stored, never case-level data.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"govigil/domain/core"
	"govigil/domain/signal"
	"govigil/ports"
)

// cacheStore implements the CacheStore interface
type cacheStore struct {
	db *sqlx.DB
}

// NewCacheStore creates a cache store backed by an open connection pool
func NewCacheStore(db *sqlx.DB) ports.CacheStore {
	return &cacheStore{db: db}
}

// Connect opens and pings a Postgres pool from a connection URL
func Connect(url string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the cache table if it does not exist
func Migrate(ctx context.Context, db *sqlx.DB) error {
	query := `CREATE TABLE IF NOT EXISTS result_cache (
		fingerprint TEXT PRIMARY KEY,
		dataset_version TEXT NOT NULL,
		result JSONB NOT NULL,
		venue TEXT NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create result_cache table: %w", err)
	}
	return nil
}

// Get retrieves a cached entry by fingerprint; a miss returns (nil, nil)
func (s *cacheStore) Get(ctx context.Context, fp core.Fingerprint) (*signal.CacheEntry, error) {
	query := `SELECT fingerprint, dataset_version, result, venue, computed_at
	FROM result_cache WHERE fingerprint = $1`

	var (
		entry       signal.CacheEntry
		fingerprint string
		version     string
		venue       string
		resultJSON  []byte
		computedAt  time.Time
	)
	err := s.db.QueryRowContext(ctx, query, fp.String()).Scan(
		&fingerprint, &version, &resultJSON, &venue, &computedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	entry.Fingerprint = core.Fingerprint(fingerprint)
	entry.Version = core.DatasetVersion(version)
	entry.Venue = signal.Venue(venue)
	entry.ComputedAt = core.NewTimestamp(computedAt)
	if err := json.Unmarshal(resultJSON, &entry.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return &entry, nil
}

// Put upserts an entry keyed by fingerprint
func (s *cacheStore) Put(ctx context.Context, entry *signal.CacheEntry) error {
	resultJSON, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `INSERT INTO result_cache (fingerprint, dataset_version, result, venue, computed_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (fingerprint) DO UPDATE SET
		dataset_version = EXCLUDED.dataset_version,
		result = EXCLUDED.result,
		venue = EXCLUDED.venue,
		computed_at = EXCLUDED.computed_at`

	_, err = s.db.ExecContext(ctx, query,
		entry.Fingerprint.String(), string(entry.Version), resultJSON, string(entry.Venue), entry.ComputedAt.Time(),
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

// PurgeExcept removes every entry not computed against the given version
func (s *cacheStore) PurgeExcept(ctx context.Context, version core.DatasetVersion) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM result_cache WHERE dataset_version <> $1`, string(version))
	if err != nil {
		return fmt.Errorf("failed to purge cache entries: %w", err)
	}
	return nil
}
