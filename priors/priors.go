package priors

import (
	. "bitbucket.org/dtolpin/infergo/dist"
	"bitbucket.org/dtolpin/infergo/model"
	"gonum.org/v1/gonum/stat/distuv"
	"math"
)

// Priors of the sampler parameters, on the percentage scale.
// Priors is an infergo model of
//   x[0]  innovation variance ψ
//   x[1:] pollster biases λ
// whose Observe is the log prior density.
type Priors struct {
	// Scale β of the inverse gamma prior of ψ. The shape is
	// derived from it, see Shape.
	Scale float64
	// Standard deviation of the zero-mean normal prior of each
	// pollster bias.
	BiasSD float64
}

var _ model.Model = &Priors{}

// Shape is β/25 + 1. The prior mean of ψ is then 25 and the
// implied standard deviation of opinion moves is a few points
// per period.
func (p *Priors) Shape() float64 {
	return p.Scale/25 + 1
}

// Posterior returns the conditional posterior parameters of ψ
// given n increments with sum of squares ss.
func (p *Priors) Posterior(n int, ss float64) (shape, scale float64) {
	return p.Shape() + float64(n)/2, p.Scale + ss/2
}

// BiasPosterior returns the normal conditional posterior of a
// bias given the sum of precisions and the sum of
// precision-weighted residuals of its observations.
func (p *Priors) BiasPosterior(prec, wres float64) (mean, vari float64) {
	vari = 1 / (prec + 1/(p.BiasSD*p.BiasSD))
	return vari * wres, vari
}

func (p *Priors) Observe(x []float64) float64 {
	const (
		psi     = iota // innovation variance
		lambda0        // first bias
	)

	if !(x[psi] > 0) {
		return math.Inf(-1)
	}

	ll := 0.

	// Innovation variance
	ig := distuv.InverseGamma{Alpha: p.Shape(), Beta: p.Scale}
	ll += ig.LogProb(x[psi])

	// Pollster biases
	ll += Normal.Logps(0, p.BiasSD, x[lambda0:]...)

	return ll
}
