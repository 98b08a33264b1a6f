package disprop

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
	"gonum.org/v1/gonum/stat/distuv"

	"govigil/domain/signal"
)

// computeChiSquareYates calculates the continuity-corrected chi-square
// statistic for the 2x2 table and its p-value (1 degree of freedom).
// Undefined when any marginal total is zero.
func computeChiSquareYates(cell signal.ContingencyCell) (signal.Estimate, float64) {
	a, b, c, d := float64(cell.A), float64(cell.B), float64(cell.C), float64(cell.D)
	n := a + b + c + d

	row1, row2 := a+b, c+d
	col1, col2 := a+c, b+d
	if row1 == 0 || row2 == 0 || col1 == 0 || col2 == 0 {
		return signal.Undefined("zero marginal total"), 1.0
	}

	diff := math.Abs(a*d-b*c) - n/2
	if diff < 0 {
		diff = 0
	}
	chi := n * diff * diff / (row1 * row2 * col1 * col2)

	dist := distuv.ChiSquared{K: 1}
	p := dist.Survival(chi)

	return signal.Defined(chi, chi, chi), p
}

// fisherExact computes the two-sided Fisher's exact p-value from the exact
// hypergeometric distribution at fixed margins (no normal approximation).
// Two-sided per the small-p method: sum of all outcome probabilities not
// exceeding that of the observed table.
func fisherExact(cell signal.ContingencyCell) float64 {
	r1 := cell.A + cell.B
	r2 := cell.C + cell.D
	c1 := cell.A + cell.C
	n := cell.Total()
	if n == 0 {
		return 1.0
	}

	lo := 0
	if c1-r2 > lo {
		lo = c1 - r2
	}
	hi := r1
	if c1 < hi {
		hi = c1
	}

	observed := hypergeomLogPMF(cell.A, r1, r2, c1, n)

	// Tolerance absorbs log-space rounding when comparing tail members
	const tol = 1e-7
	p := 0.0
	for k := lo; k <= hi; k++ {
		lp := hypergeomLogPMF(k, r1, r2, c1, n)
		if lp <= observed+tol {
			p += math.Exp(lp)
		}
	}
	if p > 1 {
		p = 1
	}
	return p
}

// hypergeomLogPMF is log P(X = k) for the hypergeometric distribution with
// the given 2x2 margins, assembled from log binomial coefficients.
func hypergeomLogPMF(k, r1, r2, c1, n int) float64 {
	return combin.LogGeneralizedBinomial(float64(r1), float64(k)) +
		combin.LogGeneralizedBinomial(float64(r2), float64(c1-k)) -
		combin.LogGeneralizedBinomial(float64(n), float64(c1))
}
