package disprop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govigil/domain/core"
	"govigil/domain/signal"
)

// Known-answer scenarios for the disproportionality metrics.
func TestCalculator_GoldStandardScenarios(t *testing.T) {
	calc := NewCalculator(Options{})

	t.Run("classic strong signal", func(t *testing.T) {
		// a=12, b=188, c=40, d=9760: PRR = (12/200)/(40/9800) = 14.7
		m, err := calc.Compute("nifedipine", "gingival hyperplasia", signal.ContingencyCell{A: 12, B: 188, C: 40, D: 9760})
		require.NoError(t, err)

		require.True(t, m.PRR.Computable)
		assert.InDelta(t, 14.7, m.PRR.Value, 0.01)
		assert.True(t, m.PRR.Lower <= m.PRR.Value && m.PRR.Value <= m.PRR.Upper)

		require.True(t, m.ChiSquare.Computable)
		assert.Greater(t, m.ChiSquare.Value, 4.0)
		assert.Less(t, m.ChiSquareP, 0.001)
		assert.Less(t, m.FisherExactP, 0.001)

		assert.True(t, m.SignalFlag, "PRR>=2, chi2>=4 and a>=3 must flag")
	})

	t.Run("a=0 is NotComputable, never zero", func(t *testing.T) {
		m, err := calc.Compute("drug", "reaction", signal.ContingencyCell{A: 0, B: 50, C: 20, D: 5000})
		require.NoError(t, err)

		assert.False(t, m.PRR.Computable)
		assert.False(t, m.ROR.Computable)
		assert.NotEmpty(t, m.PRR.Reason)
		assert.False(t, m.SignalFlag)

		// Shrinkage metrics stay defined: a=0 is weak evidence, not an error.
		assert.True(t, m.EBGM.Computable)
		assert.True(t, m.IC.Computable)
		assert.Less(t, m.IC.Value, 0.0)
	})

	t.Run("negative counts rejected all-or-nothing", func(t *testing.T) {
		_, err := calc.Compute("drug", "reaction", signal.ContingencyCell{A: -1, B: 5, C: 5, D: 5})
		require.ErrorIs(t, err, core.ErrInvalidContingencyTable)
	})

	t.Run("empty table is insufficient data", func(t *testing.T) {
		_, err := calc.Compute("drug", "reaction", signal.ContingencyCell{})
		require.ErrorIs(t, err, core.ErrInsufficientData)
	})
}

// PRR and ROR must recompute exactly from their defining ratios.
func TestCalculator_AlgebraicConsistency(t *testing.T) {
	calc := NewCalculator(Options{})

	cells := []signal.ContingencyCell{
		{A: 5, B: 95, C: 50, D: 4850},
		{A: 30, B: 170, C: 12, D: 788},
		{A: 3, B: 7, C: 9, D: 81},
		{A: 100, B: 900, C: 200, D: 8800},
	}

	for _, cell := range cells {
		m, err := calc.Compute("d", "r", cell)
		require.NoError(t, err)

		a, b, c, d := float64(cell.A), float64(cell.B), float64(cell.C), float64(cell.D)
		wantPRR := (a / (a + b)) / (c / (c + d))
		wantROR := (a * d) / (b * c)

		assert.InEpsilon(t, wantPRR, m.PRR.Value, 1e-12, "PRR round-trip for %+v", cell)
		assert.InEpsilon(t, wantROR, m.ROR.Value, 1e-12, "ROR round-trip for %+v", cell)
	}
}

// With margins held fixed and only a varied, Fisher's exact p must follow the
// same significance ordering as the chi-square p.
func TestFisherExact_MonotoneWithChiSquare(t *testing.T) {
	calc := NewCalculator(Options{})

	// Margins: drug total 200, reaction total 52, n=10000. Expected a ~ 1.04.
	margins := func(a int) signal.ContingencyCell {
		return signal.ContingencyCell{A: a, B: 200 - a, C: 52 - a, D: 10000 - 200 - 52 + a}
	}

	var prevFisher, prevChi float64 = 2, 2
	for _, a := range []int{2, 4, 8, 16, 32} {
		m, err := calc.Compute("d", "r", margins(a))
		require.NoError(t, err)

		assert.Less(t, m.FisherExactP, prevFisher, "fisher p must shrink as a grows (a=%d)", a)
		assert.Less(t, m.ChiSquareP, prevChi, "chi-square p must shrink as a grows (a=%d)", a)
		prevFisher = m.FisherExactP
		prevChi = m.ChiSquareP
	}
}

func TestFisherExact_ExactSmallTable(t *testing.T) {
	// Classic lady-tasting-tea table: two-sided p = 0.4857...
	p := fisherExact(signal.ContingencyCell{A: 3, B: 1, C: 1, D: 3})
	assert.InDelta(t, 0.4857, p, 0.001)

	// Independence: p must be 1 for a perfectly proportional table
	p = fisherExact(signal.ContingencyCell{A: 10, B: 10, C: 10, D: 10})
	assert.InDelta(t, 1.0, p, 1e-9)
}

// The +0.5 continuity correction applies to all four cells and only inside
// the interval computation; the point estimate stays untouched.
func TestContinuityCorrection_ZeroCell(t *testing.T) {
	calc := NewCalculator(Options{})

	cell := signal.ContingencyCell{A: 4, B: 0, C: 25, D: 971}
	m, err := calc.Compute("d", "r", cell)
	require.NoError(t, err)

	// Raw point estimate: (4/4)/(25/996)
	require.True(t, m.PRR.Computable)
	assert.InEpsilon(t, (4.0/4.0)/(25.0/996.0), m.PRR.Value, 1e-12)

	// Corrected-count SE still yields a finite bracketing interval
	assert.True(t, m.PRR.Lower > 0)
	assert.True(t, m.PRR.Lower <= m.PRR.Value && m.PRR.Value <= m.PRR.Upper)

	a, b, c, d := correctedCounts(cell)
	assert.Equal(t, []float64{4.5, 0.5, 25.5, 971.5}, []float64{a, b, c, d})

	// ROR requires b > 0
	assert.False(t, m.ROR.Computable)
}

// A saturated universe (d=0) zeroes the cross-product, so ROR has no finite
// log-scale interval and is reported as not computable. PRR is unaffected.
func TestROR_DegenerateWhenNoBackgroundCases(t *testing.T) {
	calc := NewCalculator(Options{})

	m, err := calc.Compute("d", "r", signal.ContingencyCell{A: 10, B: 20, C: 30, D: 0})
	require.NoError(t, err)

	require.False(t, m.ROR.Computable)
	assert.Contains(t, m.ROR.Reason, "d=0")

	require.True(t, m.PRR.Computable)
	assert.InEpsilon(t, (10.0/30.0)/(30.0/30.0), m.PRR.Value, 1e-12)
}

func TestEBGM_ShrinkageBehavior(t *testing.T) {
	calc := NewCalculator(Options{})

	// Large counts: shrinkage is negligible, EBGM approaches observed/expected
	big, err := calc.Compute("d", "r", signal.ContingencyCell{A: 500, B: 500, C: 500, D: 8500})
	require.NoError(t, err)
	oe := 500.0 / big.Cell.Expected()
	assert.InDelta(t, oe, big.EBGM.Value, oe*0.05)
	assert.True(t, big.EBGM.Lower < big.EBGM.Value && big.EBGM.Value < big.EBGM.Upper)

	// Small counts: EBGM shrinks toward the prior mean of 1
	small, err := calc.Compute("d", "r", signal.ContingencyCell{A: 2, B: 8, C: 10, D: 980})
	require.NoError(t, err)
	rawOE := 2.0 / small.Cell.Expected()
	assert.Less(t, small.EBGM.Value, rawOE, "shrinkage must pull the small-count estimate down")
}

func TestIC_CredibleBoundsBracket(t *testing.T) {
	calc := NewCalculator(Options{})

	m, err := calc.Compute("d", "r", signal.ContingencyCell{A: 12, B: 188, C: 40, D: 9760})
	require.NoError(t, err)

	require.True(t, m.IC.Computable)
	assert.Greater(t, m.IC.Value, 0.0)
	assert.True(t, m.IC.Lower < m.IC.Value && m.IC.Value < m.IC.Upper)

	require.True(t, m.BCPNN.Computable)
	assert.True(t, m.BCPNN.Lower < m.BCPNN.Value && m.BCPNN.Value < m.BCPNN.Upper)
}

func TestThresholds_Configurable(t *testing.T) {
	strict := NewCalculator(Options{Thresholds: signal.Thresholds{MinPRR: 50, MinChiSquare: 4, MinCases: 3}})
	m, err := strict.Compute("d", "r", signal.ContingencyCell{A: 12, B: 188, C: 40, D: 9760})
	require.NoError(t, err)
	assert.False(t, m.SignalFlag, "PRR 14.7 must not flag under MinPRR=50")
}
