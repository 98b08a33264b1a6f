// Package disprop computes classical disproportionality metrics for
// drug-reaction pairs from 2x2 contingency tables: PRR, ROR, EBGM, IC/BCPNN,
// Yates-corrected chi-square and Fisher's exact test.
//
// Undefined-ness is a first-class result: a metric whose defining ratio does
// not exist for the given counts is reported with Computable=false, never
// coerced to zero or infinity.
package disprop

import (
	"govigil/domain/core"
	"govigil/domain/signal"
)

// Options configures the calculator. Zero values fall back to defaults.
type Options struct {
	Thresholds signal.Thresholds
	// PriorAlpha/PriorBeta parameterize the Gamma prior of the EBGM
	// shrinkage (single-gamma simplification of MGPS). Defaults 1, 1.
	PriorAlpha float64
	PriorBeta  float64
}

// Calculator computes all metrics from one contingency cell
type Calculator struct {
	opts Options
}

// NewCalculator creates a calculator with the given options
func NewCalculator(opts Options) *Calculator {
	if opts.Thresholds == (signal.Thresholds{}) {
		opts.Thresholds = signal.DefaultThresholds()
	}
	if opts.PriorAlpha <= 0 {
		opts.PriorAlpha = 1.0
	}
	if opts.PriorBeta <= 0 {
		opts.PriorBeta = 1.0
	}
	return &Calculator{opts: opts}
}

// Compute derives the full metric set for a (drug, reaction) pair.
// All-or-nothing: malformed counts fail with ErrInvalidContingencyTable and
// no partial metrics are returned.
func (c *Calculator) Compute(drug, reaction string, cell signal.ContingencyCell) (*signal.SignalMetrics, error) {
	if !cell.Valid() {
		return nil, core.NewInvalidTableError("negative cell count")
	}
	if cell.Total() == 0 {
		return nil, core.ErrInsufficientData
	}

	m := &signal.SignalMetrics{
		Drug:     drug,
		Reaction: reaction,
		Cell:     cell,
	}

	m.PRR = computePRR(cell)
	m.ROR = computeROR(cell)
	m.EBGM = computeEBGM(cell, c.opts.PriorAlpha, c.opts.PriorBeta)
	m.IC = computeIC(cell)
	m.BCPNN = computeBCPNN(cell)

	chi, chiP := computeChiSquareYates(cell)
	m.ChiSquare = chi
	m.ChiSquareP = chiP
	m.FisherExactP = fisherExact(cell)

	t := c.opts.Thresholds
	m.SignalFlag = m.PRR.Computable && m.PRR.Value >= t.MinPRR &&
		m.ChiSquare.Computable && m.ChiSquare.Value >= t.MinChiSquare &&
		cell.A >= t.MinCases

	m.ComputedAt = core.Now()
	return m, nil
}

// Thresholds exposes the configured signal-flag cutoffs
func (c *Calculator) Thresholds() signal.Thresholds {
	return c.opts.Thresholds
}
