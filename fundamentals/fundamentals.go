// Package fundamentals estimates the election-day pseudo-poll
// from past elections: a regression of the result on a single
// predictor, such as incumbent approval or economic growth.
package fundamentals

import (
	"bitbucket.org/dtolpin/dlmpoll/kernel"
	"bitbucket.org/dtolpin/gogp/gp"
	adkernel "bitbucket.org/dtolpin/gogp/kernel/ad"
	"errors"
	"fmt"
	"gonum.org/v1/gonum/stat"
	"math"
)

// Regression is Bayesian linear regression as a Gaussian process
// with a linear kernel. Bias, Slope and Noise are in standardized
// units of the predictor and the result.
type Regression struct {
	Bias  float64 // prior variance of the intercept
	Slope float64 // prior variance of the slope
	Noise float64 // residual variance

	gp          *gp.GP
	meanx, stdx float64
	meany, stdy float64
}

// New returns an unfitted regression with weak priors.
func New() *Regression {
	return &Regression{
		Bias:  1,
		Slope: 1,
		Noise: 0.25,
	}
}

// Fit conditions the regression on past predictors x and
// results y.
func (r *Regression) Fit(x, y []float64) error {
	if len(x) != len(y) {
		return fmt.Errorf("%d predictors, %d results", len(x), len(y))
	}
	if len(x) < 2 {
		return fmt.Errorf("%d past elections, need at least 2", len(x))
	}

	// Standardize, the kernel priors are on the unit scale.
	r.meanx, r.stdx = stat.MeanStdDev(x, nil)
	r.meany, r.stdy = stat.MeanStdDev(y, nil)
	if !(r.stdx > 0) {
		return errors.New("constant predictor")
	}
	if !(r.stdy > 0) {
		// identical results, keep a unit scale
		r.stdy = 1
	}
	X := make([][]float64, len(x))
	Y := make([]float64, len(y))
	for i := range x {
		X[i] = []float64{(x[i] - r.meanx) / r.stdx}
		Y[i] = (y[i] - r.meany) / r.stdy
	}

	r.gp = &gp.GP{
		NDim:  1,
		Simil: &kernel.Linear{Bias: r.Bias, Slope: r.Slope},
		Noise: adkernel.ConstantNoise(r.Noise),
	}
	if err := r.gp.Absorb(X, Y); err != nil {
		return fmt.Errorf("absorb: %v", err)
	}
	return nil
}

// Predict returns the mean and the standard deviation of the
// result at predictor x, including the residual noise.
func (r *Regression) Predict(x float64) (mean, sd float64, err error) {
	if r.gp == nil {
		return 0, 0, errors.New("regression not fitted")
	}
	Z := [][]float64{{(x - r.meanx) / r.stdx}}
	mu, sigma, err := r.gp.Produce(Z)
	if err != nil {
		return 0, 0, fmt.Errorf("produce: %v", err)
	}
	mean = r.meany + r.stdy*mu[0]
	sd = r.stdy * math.Sqrt(sigma[0]*sigma[0]+r.Noise)
	return mean, sd, nil
}
