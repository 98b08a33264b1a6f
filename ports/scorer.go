package ports

import (
	"context"

	"govigil/domain/signal"
)

// Scorer turns raw candidate features into a composite priority score in
// [0,1]. Implementations must be deterministic.
type Scorer interface {
	Name() string
	Score(features signal.RankFeatures) float64
}

// Refiner optionally reorders an already-scored ranking (e.g. a stochastic
// annealing pass). Implementations must preserve the output shape: same
// candidates, same feature values; only ordering and ranks may change.
type Refiner interface {
	Name() string
	Refine(ctx context.Context, ranked []signal.RankedSignal) ([]signal.RankedSignal, error)
}
