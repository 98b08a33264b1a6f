package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govigil/domain/core"
	"govigil/domain/signal"
	"govigil/internal/testkit"
)

// For fixed seriousness, recency and count, increasing rarity must never
// decrease the composite score.
func TestWeightedScorer_RarityMonotone(t *testing.T) {
	scorer := NewWeightedScorer(DefaultWeights())

	base := signal.RankFeatures{CaseCount: 10, CountScore: 0.4, Seriousness: 0.5, Recency: 0.5}
	prev := -1.0
	for rarity := 0.0; rarity <= 1.0; rarity += 0.05 {
		f := base
		f.Rarity = rarity
		score := scorer.Score(f)
		assert.GreaterOrEqual(t, score, prev, "score must not drop when rarity rises to %.2f", rarity)
		assert.True(t, score >= 0 && score <= 1)
		prev = score
	}
}

// A rare+serious+recent signal must outrank a common+serious one even when
// the common signal has the higher raw count.
func TestWeightedScorer_RareSeriousBeatsCommon(t *testing.T) {
	scorer := NewWeightedScorer(DefaultWeights())

	rareSeriousRecent := signal.RankFeatures{CaseCount: 8, CountScore: 0.3, Rarity: 0.9, Seriousness: 0.9, Recency: 0.8}
	commonSerious := signal.RankFeatures{CaseCount: 120, CountScore: 1.0, Rarity: 0.1, Seriousness: 0.9, Recency: 0.3}

	assert.Greater(t, scorer.Score(rareSeriousRecent), scorer.Score(commonSerious))
}

func TestEngine_DeterministicRankingAndTieBreaks(t *testing.T) {
	table := testkit.GenerateCaseTable(testkit.GeneratorConfig{
		Cases: 2000,
		Seed:  7,
		InjectedSignals: []testkit.InjectedSignal{
			{Drug: "nifedipine", Reaction: "gingival hyperplasia", Rate: 0.01, Serious: true},
		},
	})

	engine := NewEngine(NewWeightedScorer(DefaultWeights()))

	first, err := engine.RankCandidates(context.Background(), table, 0)
	require.NoError(t, err)
	second, err := engine.RankCandidates(context.Background(), table, 0)
	require.NoError(t, err)
	require.Equal(t, first, second, "classical path must be reproducible")

	// Ranks are 1-based and dense
	for i, rs := range first {
		assert.Equal(t, i+1, rs.QuantumRank)
		assert.True(t, rs.ClassicalRank >= 1 && rs.ClassicalRank <= len(first))
		assert.True(t, rs.Score >= 0 && rs.Score <= 1)
	}

	// The injected rare+serious pair must reach the top even though common
	// background pairs carry more cases.
	top := first[0]
	assert.Equal(t, "nifedipine", top.Drug)
	assert.Equal(t, "gingival hyperplasia", top.Reaction)
	assert.Greater(t, top.ClassicalRank, top.QuantumRank, "count alone would rank the injected signal lower")
}

func TestEngine_TopKTruncation(t *testing.T) {
	table := testkit.GenerateCaseTable(testkit.GeneratorConfig{Cases: 500, Seed: 3})
	engine := NewEngine(NewWeightedScorer(DefaultWeights()))

	all, err := engine.RankCandidates(context.Background(), table, 0)
	require.NoError(t, err)
	require.Greater(t, len(all), 10)

	top10, err := engine.RankCandidates(context.Background(), table, 10)
	require.NoError(t, err)
	require.Len(t, top10, 10)
	assert.Equal(t, all[:10], top10)
}

func TestEngine_TieBreakOrdering(t *testing.T) {
	// Two candidates with identical features must order by count desc, then
	// drug, then reaction.
	now := time.Now()
	mk := func(id, drug, reaction string) signal.CaseRecord {
		return signal.CaseRecord{
			ID: core.CaseID("c-" + id), Drugs: []string{drug},
			Reactions: []string{reaction}, Age: 40, Sex: signal.SexFemale, ReportDate: now,
		}
	}
	table := &signal.CaseTable{
		Version: "v1",
		Cases: []signal.CaseRecord{
			mk("1", "beta", "rash"),
			mk("2", "alpha", "rash"),
		},
	}

	engine := NewEngine(NewWeightedScorer(DefaultWeights()))
	ranked, err := engine.RankCandidates(context.Background(), table, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "alpha", ranked[0].Drug, "equal scores break lexicographically by drug")
}

// Recency anchors to the newest report in the table, so a fixed dataset
// ranks the same regardless of when the ranking runs.
func TestEngine_RecencyAnchoredToDataset(t *testing.T) {
	newest := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	halfLifeAgo := newest.AddDate(0, 0, -180)

	mk := func(id, drug string, reported time.Time) signal.CaseRecord {
		return signal.CaseRecord{
			ID: core.CaseID("c-" + id), Drugs: []string{drug},
			Reactions: []string{"rash"}, Age: 40, Sex: signal.SexFemale, ReportDate: reported,
		}
	}
	table := &signal.CaseTable{
		Version: "v1",
		Cases: []signal.CaseRecord{
			mk("1", "fresh", newest),
			mk("2", "stale", halfLifeAgo),
		},
	}

	engine := NewEngine(NewWeightedScorer(DefaultWeights()))
	ranked, err := engine.RankCandidates(context.Background(), table, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	byDrug := map[string]signal.RankFeatures{}
	for _, rs := range ranked {
		byDrug[rs.Drug] = rs.Features
	}
	assert.InDelta(t, 1.0, byDrug["fresh"].Recency, 1e-12, "the newest report defines the anchor")
	assert.InDelta(t, 0.5, byDrug["stale"].Recency, 1e-9, "one half-life back must weigh 0.5")
}

func TestAnnealer_PreservesShapeAndIsSeedStable(t *testing.T) {
	table := testkit.GenerateCaseTable(testkit.GeneratorConfig{Cases: 800, Seed: 11})
	kit := testkit.NewTestKit()

	deterministic := NewEngine(NewWeightedScorer(DefaultWeights()))
	baseline, err := deterministic.RankCandidates(context.Background(), table, 0)
	require.NoError(t, err)

	refined := NewEngine(NewWeightedScorer(DefaultWeights())).
		WithRefiner(NewAnnealer(DefaultAnnealerConfig(), kit.RNGAdapter()))

	runA, err := refined.RankCandidates(context.Background(), table, 0)
	require.NoError(t, err)
	runB, err := refined.RankCandidates(context.Background(), table, 0)
	require.NoError(t, err)

	assert.Equal(t, runA, runB, "same seed must reproduce the refined ordering")
	require.Len(t, runA, len(baseline))

	// Same candidate set and scores; only ordering may differ
	seen := make(map[[2]string]float64, len(baseline))
	for _, rs := range baseline {
		seen[[2]string{rs.Drug, rs.Reaction}] = rs.Score
	}
	for _, rs := range runA {
		score, ok := seen[[2]string{rs.Drug, rs.Reaction}]
		require.True(t, ok, "refiner must not invent or drop candidates")
		assert.Equal(t, score, rs.Score, "refiner must not change score values")
	}
}
