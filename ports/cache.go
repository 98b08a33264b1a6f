package ports

import (
	"context"

	"govigil/domain/core"
	"govigil/domain/signal"
)

// CacheStore persists memoized operation results beyond process memory
// (write-through from the router cache). Only derived results are stored,
// never case data; entries are dropped when the dataset version moves on.
type CacheStore interface {
	Get(ctx context.Context, fp core.Fingerprint) (*signal.CacheEntry, error)
	Put(ctx context.Context, entry *signal.CacheEntry) error
	// PurgeExcept removes every entry not computed against the given
	// dataset version.
	PurgeExcept(ctx context.Context, version core.DatasetVersion) error
}
