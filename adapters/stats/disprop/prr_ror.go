package disprop

import (
	"math"

	"govigil/domain/signal"
)

// z for a two-sided 95% interval
const z95 = 1.959963984540054

// correctedCounts returns float cell counts for interval computation. When
// any cell is zero, +0.5 is added to all four cells (not just the offending
// one); the correction is applied here only and never changes the reported
// point estimate.
func correctedCounts(cell signal.ContingencyCell) (a, b, c, d float64) {
	a, b, c, d = float64(cell.A), float64(cell.B), float64(cell.C), float64(cell.D)
	if cell.A == 0 || cell.B == 0 || cell.C == 0 || cell.D == 0 {
		a += 0.5
		b += 0.5
		c += 0.5
		d += 0.5
	}
	return a, b, c, d
}

// computePRR calculates the proportional reporting ratio with its 95%
// log-normal interval. Undefined when a=0 (no drug+reaction cases) or c=0
// (comparator reporting rate is zero).
func computePRR(cell signal.ContingencyCell) signal.Estimate {
	if cell.A == 0 {
		return signal.Undefined("no cases with both drug and reaction (a=0)")
	}
	if cell.C == 0 {
		return signal.Undefined("comparator reporting rate is zero (c=0)")
	}

	exposed := float64(cell.A) / float64(cell.A+cell.B)
	unexposed := float64(cell.C) / float64(cell.C+cell.D)
	prr := exposed / unexposed

	// SE of ln(PRR) from (possibly continuity-corrected) reciprocal counts;
	// the interval stays centered on the uncorrected point estimate.
	a, b, c, d := correctedCounts(cell)
	se := math.Sqrt(1/a - 1/(a+b) + 1/c - 1/(c+d))
	lower := math.Exp(math.Log(prr) - z95*se)
	upper := math.Exp(math.Log(prr) + z95*se)

	return signal.Defined(prr, lower, upper)
}

// computeROR calculates the reporting odds ratio with its 95% log-normal
// interval. Undefined when a=0, b=0 or c=0 (the odds ratio does not exist);
// d=0 is likewise degenerate for the cross-product.
func computeROR(cell signal.ContingencyCell) signal.Estimate {
	if cell.A == 0 {
		return signal.Undefined("no cases with both drug and reaction (a=0)")
	}
	if cell.B == 0 {
		return signal.Undefined("no drug-only cases (b=0)")
	}
	if cell.C == 0 {
		return signal.Undefined("no reaction-only cases (c=0)")
	}
	if cell.D == 0 {
		return signal.Undefined("no background cases (d=0)")
	}

	ror := (float64(cell.A) * float64(cell.D)) / (float64(cell.B) * float64(cell.C))

	a, b, c, d := correctedCounts(cell)
	se := math.Sqrt(1/a + 1/b + 1/c + 1/d)
	lower := math.Exp(math.Log(ror) - z95*se)
	upper := math.Exp(math.Log(ror) + z95*se)

	return signal.Defined(ror, lower, upper)
}
