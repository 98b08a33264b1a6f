package disprop

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"

	"govigil/domain/signal"
)

// computeEBGM performs empirical-Bayes gamma-Poisson shrinkage of the
// observed/expected ratio toward the prior mean.
//
// The observed count a is modeled as Poisson(lambda*E) with a Gamma(alpha,
// beta) prior on the relative reporting rate lambda, giving the posterior
// Gamma(alpha+a, beta+E). EBGM is the posterior geometric mean
// exp(digamma(alpha+a) - ln(beta+E)); EB05/EB95 are the 5th/95th posterior
// quantiles. This is the single-gamma simplification of the MGPS mixture
// prior.
func computeEBGM(cell signal.ContingencyCell, alpha, beta float64) signal.Estimate {
	expected := cell.Expected()
	if expected == 0 {
		return signal.Undefined("expected count is zero")
	}

	shape := alpha + float64(cell.A)
	rate := beta + expected

	ebgm := math.Exp(mathext.Digamma(shape) - math.Log(rate))

	posterior := distuv.Gamma{Alpha: shape, Beta: rate}
	eb05 := posterior.Quantile(0.05)
	eb95 := posterior.Quantile(0.95)

	return signal.Defined(ebgm, eb05, eb95)
}
