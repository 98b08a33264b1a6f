package dedupe

import (
	"context"
	"math"

	"govigil/domain/core"
	"govigil/domain/signal"
)

// Field weights of the composite similarity score. They sum to 1 so the
// score stays in [0,1].
const (
	weightDrugs     = 0.25
	weightReactions = 0.25
	weightAge       = 0.15
	weightSex       = 0.10
	weightCountry   = 0.10
	weightOnset     = 0.15

	// Partial-credit windows
	ageFullMatchYears  = 2.0
	ageZeroCreditYears = 5.0
	onsetFullMatchDays = 3.0
	onsetZeroDays      = 14.0
)

// caseSimilarity scores two cases in [0,1]. Reflexive (x,x)=1 and symmetric
// by construction: every field term is symmetric in its arguments.
func caseSimilarity(x, y *signal.CaseRecord) float64 {
	score := weightDrugs * jaccard(x.Drugs, y.Drugs)
	score += weightReactions * jaccard(x.Reactions, y.Reactions)
	score += weightAge * ageSimilarity(x.Age, y.Age)
	score += weightSex * equalCredit(string(x.Sex), string(y.Sex))
	score += weightCountry * equalCredit(x.Country, y.Country)
	score += weightOnset * onsetSimilarity(x, y)
	return score
}

// jaccard is set overlap over union; two empty sets count as identical
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		if seen[s] {
			continue
		}
		seen[s] = true
		if set[s] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}

// ageSimilarity gives full credit within +-2 years, tapering to zero at 5
func ageSimilarity(x, y float64) float64 {
	if x < 0 || y < 0 {
		return 0.5 // unknown ages are weak evidence either way
	}
	diff := math.Abs(x - y)
	if diff <= ageFullMatchYears {
		return 1.0
	}
	if diff >= ageZeroCreditYears {
		return 0.0
	}
	return 1.0 - (diff-ageFullMatchYears)/(ageZeroCreditYears-ageFullMatchYears)
}

func onsetSimilarity(x, y *signal.CaseRecord) float64 {
	if x.OnsetDate.IsZero() || y.OnsetDate.IsZero() {
		return 0.5
	}
	days := math.Abs(x.OnsetDate.Sub(y.OnsetDate).Hours() / 24)
	if days <= onsetFullMatchDays {
		return 1.0
	}
	if days >= onsetZeroDays {
		return 0.0
	}
	return 1.0 - (days-onsetFullMatchDays)/(onsetZeroDays-onsetFullMatchDays)
}

func equalCredit(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return 0.0
}

// nearGroups runs the O(n^2) pairwise comparison, unions similar-enough
// pairs, and emits one canonical group per connected component so a mutually
// similar triangle never splits across groups.
func (e *Engine) nearGroups(ctx context.Context, table *signal.CaseTable, threshold float64) ([]signal.DuplicateGroup, error) {
	n := len(table.Cases)
	if n > e.cfg.MaxCases {
		return nil, core.NewCaseLimitError(n, e.cfg.MaxCases)
	}

	uf := newUnionFind(n)
	sims := make(map[[2]int]float64)

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for j := i + 1; j < n; j++ {
			sim := caseSimilarity(&table.Cases[i], &table.Cases[j])
			if sim >= threshold {
				uf.union(i, j)
				sims[[2]int{i, j}] = sim
			}
		}
	}

	groups := groupsFromComponents(table.Cases, uf, func(idxs []int) float64 {
		// Group similarity is the weakest accepted link inside the component
		min := 1.0
		for a := 0; a < len(idxs); a++ {
			for b := a + 1; b < len(idxs); b++ {
				if sim, ok := sims[[2]int{idxs[a], idxs[b]}]; ok && sim < min {
					min = sim
				}
			}
		}
		return min
	})
	return groups, nil
}
