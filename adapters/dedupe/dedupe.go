// Package dedupe finds likely-duplicate adverse-event cases. Exact mode
// groups identical composite signatures; near mode scores pairwise field
// similarity with partial-match credit and groups the transitive closure of
// similar-enough pairs.
//
// Near mode is O(n^2) in the case count. The engine enforces a configurable
// upper bound and fails fast with ErrCaseLimitExceeded instead of silently
// hanging; callers should pre-filter by drug for large datasets.
package dedupe

import (
	"context"
	"sort"

	"govigil/domain/core"
	"govigil/domain/signal"
)

// Config tunes the duplicate detector
type Config struct {
	// Threshold is the minimum pairwise similarity for near mode
	Threshold float64
	// MaxCases caps the near-mode input size (pairwise cost guard)
	MaxCases int
}

// DefaultConfig returns threshold 0.85 and a 5000-case pairwise cap
func DefaultConfig() Config {
	return Config{Threshold: 0.85, MaxCases: 5000}
}

// Engine detects duplicate case groups
type Engine struct {
	cfg Config
}

// NewEngine creates a duplicate detection engine
func NewEngine(cfg Config) *Engine {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = 0.85
	}
	if cfg.MaxCases <= 0 {
		cfg.MaxCases = 5000
	}
	return &Engine{cfg: cfg}
}

// FindDuplicates returns disjoint duplicate groups for the given mode. The
// threshold argument overrides the configured one when positive.
func (e *Engine) FindDuplicates(ctx context.Context, table *signal.CaseTable, mode signal.DetectionMode, threshold float64) ([]signal.DuplicateGroup, error) {
	if threshold <= 0 {
		threshold = e.cfg.Threshold
	}
	switch mode {
	case signal.ModeExact:
		return e.exactGroups(ctx, table)
	case signal.ModeNear:
		return e.nearGroups(ctx, table, threshold)
	default:
		return nil, core.NewInvalidTableError("unknown detection mode " + string(mode))
	}
}

// groupsFromComponents converts a union-find partition into sorted duplicate
// groups, skipping singletons.
func groupsFromComponents(cases []signal.CaseRecord, uf *unionFind, similarity func(ids []int) float64) []signal.DuplicateGroup {
	members := make(map[int][]int)
	for i := range cases {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	var groups []signal.DuplicateGroup
	for _, idxs := range members {
		if len(idxs) < 2 {
			continue
		}
		sort.Ints(idxs)
		ids := make([]core.CaseID, len(idxs))
		for i, idx := range idxs {
			ids[i] = cases[idx].ID
		}
		sim := similarity(idxs)
		groups = append(groups, signal.DuplicateGroup{
			CaseIDs:    ids,
			Similarity: sim,
			Action:     actionFor(sim),
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Similarity != groups[j].Similarity {
			return groups[i].Similarity > groups[j].Similarity
		}
		return groups[i].CaseIDs[0] < groups[j].CaseIDs[0]
	})
	return groups
}

// actionFor maps group similarity to a suggested disposition
func actionFor(similarity float64) signal.DuplicateAction {
	switch {
	case similarity >= 0.99:
		return signal.ActionMerge
	case similarity >= 0.90:
		return signal.ActionInspect
	default:
		return signal.ActionKeep
	}
}

// unionFind is a plain disjoint-set with path compression
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(x, y int) {
	rx, ry := u.find(x), u.find(y)
	if rx != ry {
		u.parent[rx] = ry
	}
}
