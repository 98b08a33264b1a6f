package ranking

import (
	"govigil/domain/signal"
)

// Weights holds the linear feature weights and the pairwise interaction
// bonuses of the composite priority score. All values are configurable; the
// defaults favor rare, serious, recent signals over merely frequent ones.
type Weights struct {
	Rarity      float64 `json:"rarity"`
	Seriousness float64 `json:"seriousness"`
	Recency     float64 `json:"recency"`
	Count       float64 `json:"count"`

	// Interaction bonuses: a candidate that is simultaneously rare and
	// serious (etc.) scores above the pure linear combination, so a
	// rare+serious+recent signal outranks a common+serious one even with a
	// lower raw count.
	BonusRareSerious   float64 `json:"bonus_rare_serious"`
	BonusRareRecent    float64 `json:"bonus_rare_recent"`
	BonusSeriousRecent float64 `json:"bonus_serious_recent"`
}

// DefaultWeights returns the standard rarity-dominant weighting
func DefaultWeights() Weights {
	return Weights{
		Rarity:      0.40,
		Seriousness: 0.35,
		Recency:     0.20,
		Count:       0.05,

		BonusRareSerious:   0.08,
		BonusRareRecent:    0.04,
		BonusSeriousRecent: 0.03,
	}
}

// WeightedScorer is the mandatory deterministic scoring strategy: a weighted
// linear combination of the candidate features plus interaction bonuses,
// clamped to [0,1]. Strictly monotone in every feature.
type WeightedScorer struct {
	weights Weights
}

// NewWeightedScorer creates the deterministic scorer
func NewWeightedScorer(weights Weights) *WeightedScorer {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &WeightedScorer{weights: weights}
}

// Name returns the strategy name
func (s *WeightedScorer) Name() string { return "weighted_linear" }

// Score computes the composite priority score in [0,1]
func (s *WeightedScorer) Score(f signal.RankFeatures) float64 {
	w := s.weights

	score := w.Rarity*f.Rarity +
		w.Seriousness*f.Seriousness +
		w.Recency*f.Recency +
		w.Count*f.CountScore

	score += w.BonusRareSerious * f.Rarity * f.Seriousness
	score += w.BonusRareRecent * f.Rarity * f.Recency
	score += w.BonusSeriousRecent * f.Seriousness * f.Recency

	norm := w.Rarity + w.Seriousness + w.Recency + w.Count +
		w.BonusRareSerious + w.BonusRareRecent + w.BonusSeriousRecent
	if norm > 0 {
		score /= norm
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
