package disprop

import (
	"math"

	"govigil/domain/signal"
)

// computeIC calculates the information component with IC025/IC975 credible
// bounds using the shrinkage observed-to-expected formulation
// IC = log2((a+1/2)/(E+1/2)) and the standard credible-interval
// approximations for the posterior distribution.
func computeIC(cell signal.ContingencyCell) signal.Estimate {
	expected := cell.Expected()
	if cell.Total() == 0 {
		return signal.Undefined("empty table")
	}

	shrunk := float64(cell.A) + 0.5
	ic := math.Log2(shrunk / (expected + 0.5))

	// Credible bound approximations as functions of the shrunk count
	ic025 := ic - 3.3*math.Pow(shrunk, -0.5) - 2.0*math.Pow(shrunk, -1.5)
	ic975 := ic + 2.4*math.Pow(shrunk, -0.5) - 0.5*math.Pow(shrunk, -1.5)

	return signal.Defined(ic, ic025, ic975)
}

// computeBCPNN calculates the original Bayesian confidence propagation neural
// network information component: posterior expectation of IC with a
// variance-based two-sigma interval, using the standard Dirichlet
// hyperparameters (alpha1=beta1=1, alpha=beta=2, gamma11=1).
func computeBCPNN(cell signal.ContingencyCell) signal.Estimate {
	n := float64(cell.Total())
	if n == 0 {
		return signal.Undefined("empty table")
	}

	a := float64(cell.A)
	drugTotal := float64(cell.A + cell.B)
	reactionTotal := float64(cell.A + cell.C)

	const (
		alpha1  = 1.0
		beta1   = 1.0
		alphaT  = 2.0
		betaT   = 2.0
		gamma11 = 1.0
	)

	// gamma is chosen so the prior IC expectation is zero
	gamma := gamma11 * (n + alphaT) * (n + betaT) / ((drugTotal + alpha1) * (reactionTotal + beta1))

	expectation := math.Log2((a + gamma11) * (n + alphaT) * (n + betaT) /
		((n + gamma) * (drugTotal + alpha1) * (reactionTotal + beta1)))

	ln2sq := math.Ln2 * math.Ln2
	variance := ((n-a+gamma-gamma11)/((a+gamma11)*(1+n+gamma)) +
		(n-drugTotal+alphaT-alpha1)/((drugTotal+alpha1)*(1+n+alphaT)) +
		(n-reactionTotal+betaT-beta1)/((reactionTotal+beta1)*(1+n+betaT))) / ln2sq

	sd := math.Sqrt(variance)
	return signal.Defined(expectation, expectation-2*sd, expectation+2*sd)
}
