package ranking

import (
	"context"
	"math"
	"math/rand"

	"govigil/domain/signal"
	"govigil/ports"
)

// AnnealerConfig tunes the quantum-simulator-style refinement pass
type AnnealerConfig struct {
	Iterations  int     // proposal steps
	InitialTemp float64 // starting temperature
	CoolingRate float64 // multiplicative decay per step
	TunnelProb  float64 // chance of a tunneling jump instead of a local swap
	Seed        int64   // stream seed; same seed, same refined ordering
}

// DefaultAnnealerConfig returns conservative refinement defaults
func DefaultAnnealerConfig() AnnealerConfig {
	return AnnealerConfig{
		Iterations:  4000,
		InitialTemp: 0.8,
		CoolingRate: 0.9985,
		TunnelProb:  0.05,
		Seed:        1,
	}
}

// Annealer is the optional stochastic refinement strategy: simulated
// annealing over the candidate permutation with tunneling-like long jumps to
// escape local optima. It only reorders candidates; scores, features and the
// result shape are untouched. The deterministic scorer path stays runnable
// without it.
type Annealer struct {
	cfg AnnealerConfig
	rng ports.RNG
}

// NewAnnealer creates an annealing refiner seeded through the RNG port
func NewAnnealer(cfg AnnealerConfig, rng ports.RNG) *Annealer {
	if cfg.Iterations <= 0 {
		cfg = DefaultAnnealerConfig()
	}
	return &Annealer{cfg: cfg, rng: rng}
}

// Name returns the strategy name
func (a *Annealer) Name() string { return "simulated_annealing" }

// Refine anneals the permutation against a position-discounted utility. The
// deterministic input ordering is the initial state, so the refiner can only
// keep or improve the utility it converges to; acceptance of worse states at
// high temperature plus tunneling jumps let it cross barriers on the way.
func (a *Annealer) Refine(ctx context.Context, ranked []signal.RankedSignal) ([]signal.RankedSignal, error) {
	n := len(ranked)
	if n < 3 {
		return ranked, nil
	}

	rng, err := a.rng.SeededStream(ctx, "ranking_annealer", a.cfg.Seed)
	if err != nil {
		return nil, err
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	best := make([]int, n)
	copy(best, perm)

	current := utility(ranked, perm)
	bestUtil := current
	temp := a.cfg.InitialTemp

	for step := 0; step < a.cfg.Iterations; step++ {
		if step%512 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		i, j := proposeMove(rng, n, a.cfg.TunnelProb)
		perm[i], perm[j] = perm[j], perm[i]
		candidate := utility(ranked, perm)

		delta := candidate - current
		if delta >= 0 || rng.Float64() < math.Exp(delta/temp) {
			current = candidate
			if current > bestUtil {
				bestUtil = current
				copy(best, perm)
			}
		} else {
			perm[i], perm[j] = perm[j], perm[i] // reject
		}
		temp *= a.cfg.CoolingRate
	}

	refined := make([]signal.RankedSignal, n)
	for pos, idx := range best {
		refined[pos] = ranked[idx]
	}
	return refined, nil
}

// proposeMove picks a swap: usually adjacent-ish, occasionally a tunneling
// jump across the whole permutation.
func proposeMove(rng *rand.Rand, n int, tunnelProb float64) (int, int) {
	i := rng.Intn(n)
	if rng.Float64() < tunnelProb {
		j := rng.Intn(n)
		for j == i {
			j = rng.Intn(n)
		}
		return i, j
	}
	j := i + 1 + rng.Intn(3)
	if j >= n {
		j = i - 1 - rng.Intn(3)
		if j < 0 {
			j = (i + 1) % n
		}
	}
	return i, j
}

// utility is the position-discounted sum of scores (higher is better); the
// discount makes early positions dominate, so high scores migrate to the top.
func utility(ranked []signal.RankedSignal, perm []int) float64 {
	total := 0.0
	for pos, idx := range perm {
		total += ranked[idx].Score / math.Log2(float64(pos)+2)
	}
	return total
}
