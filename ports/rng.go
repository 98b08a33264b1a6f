package ports

import (
	"context"
	"math/rand"
)

// RNG provides seeded random number generation for deterministic operations
type RNG interface {
	// SeededStream creates a deterministic random number generator for a
	// named operation. The same (name, seed) pair always produces the same
	// stream, so stochastic refinement stays reproducible.
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)
}
