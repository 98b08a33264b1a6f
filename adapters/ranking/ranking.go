// Package ranking scores all (drug, reaction) candidates cheaply so the
// expensive exact statistics can be computed lazily for only the top-ranked
// pairs. The default path is fully deterministic; an optional annealing
// refiner can perturb the ordering without changing the output shape.
package ranking

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"govigil/domain/signal"
	"govigil/ports"
)

// recencyHalfLife controls how fast report-date weight decays
const recencyHalfLife = 180 * 24 * time.Hour

// Engine enumerates and ranks drug-reaction candidates
type Engine struct {
	scorer  ports.Scorer
	refiner ports.Refiner // optional; nil means deterministic path only
}

// NewEngine creates a ranking engine with the deterministic scorer
func NewEngine(scorer ports.Scorer) *Engine {
	return &Engine{scorer: scorer}
}

// WithRefiner enables the optional stochastic refinement strategy
func (e *Engine) WithRefiner(refiner ports.Refiner) *Engine {
	e.refiner = refiner
	return e
}

// candidate accumulates per-pair evidence during enumeration
type candidate struct {
	drug, reaction string
	count          int
	serious        int
	recencySum     []float64
}

// RankCandidates enumerates every (drug, reaction) pair in the table,
// computes its cheap features, scores them and returns the top K (K<=0 means
// all). Ties break by raw case count, then drug, then reaction, for
// determinism.
func (e *Engine) RankCandidates(ctx context.Context, table *signal.CaseTable, topK int) ([]signal.RankedSignal, error) {
	// Recency is anchored to the newest report in the table, not the wall
	// clock, so the same dataset version always ranks identically.
	anchor := recencyAnchor(table)

	pairs := make(map[[2]string]*candidate)
	reactionFreq := make(map[string]int)

	for i := range table.Cases {
		if i%2048 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		c := &table.Cases[i]
		for _, r := range c.Reactions {
			reactionFreq[r]++
		}
		rec := recencyWeight(anchor, c.ReportDate)
		for _, d := range c.Drugs {
			for _, r := range c.Reactions {
				key := [2]string{d, r}
				cand, ok := pairs[key]
				if !ok {
					cand = &candidate{drug: d, reaction: r}
					pairs[key] = cand
				}
				cand.count++
				if c.Serious {
					cand.serious++
				}
				cand.recencySum = append(cand.recencySum, rec)
			}
		}
	}

	maxPairCount := 0
	maxReactionFreq := 0
	for _, cand := range pairs {
		if cand.count > maxPairCount {
			maxPairCount = cand.count
		}
	}
	for _, freq := range reactionFreq {
		if freq > maxReactionFreq {
			maxReactionFreq = freq
		}
	}

	ranked := make([]signal.RankedSignal, 0, len(pairs))
	for _, cand := range pairs {
		recency, _ := stats.Mean(cand.recencySum)
		f := signal.RankFeatures{
			CaseCount:   cand.count,
			CountScore:  logScale(cand.count, maxPairCount),
			Rarity:      1 - logScale(reactionFreq[cand.reaction], maxReactionFreq),
			Seriousness: float64(cand.serious) / float64(cand.count),
			Recency:     recency,
		}
		ranked = append(ranked, signal.RankedSignal{
			Drug:     cand.drug,
			Reaction: cand.reaction,
			Features: f,
			Score:    e.scorer.Score(f),
		})
	}

	sortByScore(ranked)
	assignClassicalRanks(ranked)
	for i := range ranked {
		ranked[i].QuantumRank = i + 1
	}

	if e.refiner != nil {
		refined, err := e.refiner.Refine(ctx, ranked)
		if err != nil {
			return nil, err
		}
		ranked = refined
		for i := range ranked {
			ranked[i].QuantumRank = i + 1
		}
	}

	if topK > 0 && topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// sortByScore orders by score desc with the deterministic tie-break chain:
// raw case count desc, then drug asc, then reaction asc.
func sortByScore(ranked []signal.RankedSignal) {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return lessByCount(ranked[i], ranked[j])
	})
}

// assignClassicalRanks computes the by-count comparison ranking so callers
// can contrast the quantum ordering with plain frequency.
func assignClassicalRanks(ranked []signal.RankedSignal) {
	byCount := make([]int, len(ranked))
	for i := range byCount {
		byCount[i] = i
	}
	sort.Slice(byCount, func(x, y int) bool {
		return lessByCount(ranked[byCount[x]], ranked[byCount[y]])
	})
	for pos, idx := range byCount {
		ranked[idx].ClassicalRank = pos + 1
	}
}

func lessByCount(a, b signal.RankedSignal) bool {
	if a.Features.CaseCount != b.Features.CaseCount {
		return a.Features.CaseCount > b.Features.CaseCount
	}
	if a.Drug != b.Drug {
		return a.Drug < b.Drug
	}
	return a.Reaction < b.Reaction
}

// logScale maps a count into [0,1] on a log curve relative to the maximum
func logScale(count, max int) float64 {
	if max <= 0 || count <= 0 {
		return 0
	}
	return math.Log1p(float64(count)) / math.Log1p(float64(max))
}

// recencyAnchor returns the newest report date in the table, falling back to
// the wall clock when no case carries one.
func recencyAnchor(table *signal.CaseTable) time.Time {
	var anchor time.Time
	for i := range table.Cases {
		if table.Cases[i].ReportDate.After(anchor) {
			anchor = table.Cases[i].ReportDate
		}
	}
	if anchor.IsZero() {
		return time.Now()
	}
	return anchor
}

// recencyWeight decays report-date weight with a fixed half-life
func recencyWeight(anchor, reported time.Time) float64 {
	if reported.IsZero() || reported.After(anchor) {
		return 1.0
	}
	age := anchor.Sub(reported)
	return math.Exp2(-float64(age) / float64(recencyHalfLife))
}
