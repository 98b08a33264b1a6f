// Package testkit provides deterministic fixtures for tests and demos:
// a seeded RNG adapter and a synthetic adverse-event case generator.
package testkit

import (
	"context"
	"hash/fnv"
	"math/rand"

	"govigil/ports"
)

// TestKit bundles the deterministic test utilities
type TestKit struct {
	rng *RNGAdapter
}

// NewTestKit creates a test kit instance
func NewTestKit() *TestKit {
	return &TestKit{rng: &RNGAdapter{}}
}

// RNGAdapter returns the seeded RNG port implementation
func (k *TestKit) RNGAdapter() ports.RNG {
	return k.rng
}

// RNGAdapter implements ports.RNG with name-mixed seeds so distinct
// operations get independent but reproducible streams.
type RNGAdapter struct{}

// SeededStream creates a deterministic stream for (name, seed)
func (a *RNGAdapter) SeededStream(_ context.Context, name string, seed int64) (*rand.Rand, error) {
	h := fnv.New64a()
	h.Write([]byte(name))
	mixed := int64(h.Sum64()) ^ seed
	return rand.New(rand.NewSource(mixed)), nil
}
