// Package clustering partitions one signal's case subset into patient
// subgroups with a seriousness-weighted k-means. The seriousness feature is
// deliberately over-weighted so high-risk cases separate into their own
// clusters instead of being averaged into demographic ones.
package clustering

import (
	"context"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"govigil/domain/core"
	"govigil/domain/signal"
)

// Config tunes the clustering engine
type Config struct {
	K        int // requested cluster count
	MinCases int // below this the engine refuses to cluster
	MaxIter  int
	// SeriousWeight skews the distance metric toward the serious flag
	SeriousWeight float64
}

// DefaultConfig returns k=3, minimum 20 cases
func DefaultConfig() Config {
	return Config{K: 3, MinCases: 20, MaxIter: 50, SeriousWeight: 2.0}
}

// Engine clusters case subsets
type Engine struct {
	cfg Config
}

// NewEngine creates a clustering engine
func NewEngine(cfg Config) *Engine {
	if cfg.K <= 0 {
		cfg.K = 3
	}
	if cfg.MinCases <= 0 {
		cfg.MinCases = 20
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 50
	}
	if cfg.SeriousWeight <= 0 {
		cfg.SeriousWeight = 2.0
	}
	return &Engine{cfg: cfg}
}

// Cluster partitions the cases into at most K subgroups and returns their
// summaries sorted by percent-serious descending. Fails with
// ErrInsufficientCasesForClustering below the minimum threshold instead of
// returning degenerate clusters.
func (e *Engine) Cluster(ctx context.Context, cases []signal.CaseRecord, k int) ([]signal.ClusterSummary, error) {
	if k <= 0 {
		k = e.cfg.K
	}
	if len(cases) < e.cfg.MinCases {
		return nil, core.NewClusteringError(len(cases), e.cfg.MinCases)
	}
	if k > len(cases) {
		k = len(cases)
	}

	vectors := e.featureVectors(cases)
	centroids := e.seedCentroids(vectors, k)
	assign := make([]int, len(vectors))

	for iter := 0; iter < e.cfg.MaxIter; iter++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		changed := false
		for i, v := range vectors {
			best := nearestCentroid(v, centroids, e.cfg.SeriousWeight)
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		centroids = recomputeCentroids(vectors, assign, centroids)
	}

	return e.summarize(cases, assign, k)
}

// featureVectors encodes (normalized age, encoded sex, serious flag)
func (e *Engine) featureVectors(cases []signal.CaseRecord) [][3]float64 {
	maxAge := 1.0
	for i := range cases {
		if cases[i].Age > maxAge {
			maxAge = cases[i].Age
		}
	}

	vectors := make([][3]float64, len(cases))
	for i := range cases {
		c := &cases[i]
		age := c.Age / maxAge
		if c.Age < 0 {
			age = 0.5 // unknown age sits mid-range
		}
		vectors[i] = [3]float64{age, encodeSex(c.Sex), boolFloat(c.Serious)}
	}
	return vectors
}

// seedCentroids picks deterministic farthest-point seeds: the first vector,
// then whichever vector is farthest from its nearest existing seed.
func (e *Engine) seedCentroids(vectors [][3]float64, k int) [][3]float64 {
	centroids := make([][3]float64, 0, k)
	centroids = append(centroids, vectors[0])
	for len(centroids) < k {
		bestIdx, bestDist := 0, -1.0
		for i, v := range vectors {
			d := math.Inf(1)
			for _, c := range centroids {
				if dd := distance(v, c, e.cfg.SeriousWeight); dd < d {
					d = dd
				}
			}
			if d > bestDist {
				bestDist, bestIdx = d, i
			}
		}
		centroids = append(centroids, vectors[bestIdx])
	}
	return centroids
}

func (e *Engine) summarize(cases []signal.CaseRecord, assign []int, k int) ([]signal.ClusterSummary, error) {
	summaries := make([]signal.ClusterSummary, 0, k)
	for cluster := 0; cluster < k; cluster++ {
		var ages []float64
		var serious int
		sexCount := map[signal.Sex]int{}
		var ids []core.CaseID

		for i := range cases {
			if assign[i] != cluster {
				continue
			}
			ids = append(ids, cases[i].ID)
			if cases[i].Age >= 0 {
				ages = append(ages, cases[i].Age)
			}
			if cases[i].Serious {
				serious++
			}
			sexCount[cases[i].Sex]++
		}
		if len(ids) == 0 {
			continue // empty cluster after convergence
		}

		meanAge, _ := stats.Mean(ages)
		size := len(ids)
		pctSex := make(map[signal.Sex]float64, len(sexCount))
		for sex, n := range sexCount {
			pctSex[sex] = float64(n) / float64(size) * 100
		}

		summaries = append(summaries, signal.ClusterSummary{
			ClusterID:  cluster,
			Size:       size,
			MeanAge:    meanAge,
			PctSerious: float64(serious) / float64(size) * 100,
			PctSex:     pctSex,
			CaseIDs:    ids,
		})
	}

	// Risk-first ordering
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].PctSerious != summaries[j].PctSerious {
			return summaries[i].PctSerious > summaries[j].PctSerious
		}
		return summaries[i].Size > summaries[j].Size
	})
	return summaries, nil
}

func nearestCentroid(v [3]float64, centroids [][3]float64, seriousWeight float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := distance(v, c, seriousWeight); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func recomputeCentroids(vectors [][3]float64, assign []int, prev [][3]float64) [][3]float64 {
	k := len(prev)
	sums := make([][3]float64, k)
	counts := make([]int, k)
	for i, v := range vectors {
		c := assign[i]
		for dim := 0; dim < 3; dim++ {
			sums[c][dim] += v[dim]
		}
		counts[c]++
	}
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			sums[c] = prev[c] // an emptied cluster keeps its position
			continue
		}
		for dim := 0; dim < 3; dim++ {
			sums[c][dim] /= float64(counts[c])
		}
	}
	return sums
}

// distance is squared euclidean with the serious dimension up-weighted
func distance(a, b [3]float64, seriousWeight float64) float64 {
	dAge := a[0] - b[0]
	dSex := a[1] - b[1]
	dSerious := (a[2] - b[2]) * seriousWeight
	return dAge*dAge + dSex*dSex + dSerious*dSerious
}

func encodeSex(s signal.Sex) float64 {
	switch s {
	case signal.SexMale:
		return 0.0
	case signal.SexFemale:
		return 1.0
	default:
		return 0.5
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
