package testkit

import (
	"fmt"
	"math/rand"
	"time"

	"govigil/domain/core"
	"govigil/domain/signal"
)

// GeneratorConfig shapes the synthetic adverse-event dataset
type GeneratorConfig struct {
	Cases int
	Seed  int64
	// InjectedSignals are (drug, reaction) pairs reported together far more
	// often than independence predicts, so disproportionality tests have a
	// known ground truth.
	InjectedSignals []InjectedSignal
	// DuplicateRate is the fraction of cases emitted a second time with
	// small field perturbations, for duplicate-detection tests.
	DuplicateRate float64
}

// InjectedSignal is one planted drug-reaction association
type InjectedSignal struct {
	Drug     string
	Reaction string
	Rate     float64 // probability a case reports the pair
	Serious  bool
}

var (
	backgroundDrugs = []string{
		"aspirin", "ibuprofen", "metformin", "lisinopril", "atorvastatin",
		"omeprazole", "amoxicillin", "sertraline", "amlodipine", "levothyroxine",
	}
	backgroundReactions = []string{
		"nausea", "headache", "dizziness", "rash", "fatigue",
		"diarrhea", "insomnia", "pruritus", "vomiting", "dyspepsia",
	}
	countries = []string{"US", "GB", "DE", "FR", "JP", "BR"}
)

// GenerateCaseTable builds a reproducible synthetic case table. Background
// cases draw drug and reaction independently; injected signals co-report
// their pair at the configured rate.
func GenerateCaseTable(cfg GeneratorConfig) *signal.CaseTable {
	if cfg.Cases <= 0 {
		cfg.Cases = 1000
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := make([]signal.CaseRecord, 0, cfg.Cases)
	for i := 0; i < cfg.Cases; i++ {
		c := signal.CaseRecord{
			ID:         core.CaseID(fmt.Sprintf("case-%06d", i)),
			Age:        float64(18 + rng.Intn(72)),
			Sex:        pickSex(rng),
			Country:    countries[rng.Intn(len(countries))],
			Serious:    rng.Float64() < 0.15,
			ReportDate: base.AddDate(0, 0, rng.Intn(540)),
		}
		c.OnsetDate = c.ReportDate.AddDate(0, 0, -rng.Intn(30))

		injected := false
		for _, sig := range cfg.InjectedSignals {
			if rng.Float64() < sig.Rate {
				c.Drugs = append(c.Drugs, sig.Drug)
				c.Reactions = append(c.Reactions, sig.Reaction)
				if sig.Serious {
					c.Serious = true
				}
				injected = true
				break
			}
		}
		if !injected {
			c.Drugs = []string{backgroundDrugs[rng.Intn(len(backgroundDrugs))]}
			c.Reactions = []string{backgroundReactions[rng.Intn(len(backgroundReactions))]}
		}
		cases = append(cases, c)
	}

	if cfg.DuplicateRate > 0 {
		n := len(cases)
		for i := 0; i < n; i++ {
			if rng.Float64() < cfg.DuplicateRate {
				dup := cases[i]
				dup.ID = core.CaseID(fmt.Sprintf("%s-dup", cases[i].ID))
				// Perturb age within the near-duplicate tolerance
				dup.Age += float64(rng.Intn(3) - 1)
				cases = append(cases, dup)
			}
		}
	}

	return &signal.CaseTable{
		Version: core.DatasetVersion(fmt.Sprintf("synthetic-%d-%d", cfg.Cases, cfg.Seed)),
		Cases:   cases,
	}
}

func pickSex(rng *rand.Rand) signal.Sex {
	switch rng.Intn(10) {
	case 0:
		return signal.SexUnknown
	case 1, 2, 3, 4:
		return signal.SexMale
	default:
		return signal.SexFemale
	}
}
