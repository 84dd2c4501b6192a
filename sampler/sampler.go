// Package sampler draws from the posterior of the latent opinion
// trajectory, the innovation variance and the pollster biases
// with a forward-filter/backward-sample Gibbs sampler.
package sampler

import (
	"bitbucket.org/dtolpin/dlmpoll/model"
	"bitbucket.org/dtolpin/dlmpoll/obs"
	"bitbucket.org/dtolpin/dlmpoll/panel"
	"bitbucket.org/dtolpin/dlmpoll/priors"
	"fmt"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"math"
)

// Hyper are the fixed hyperparameters, on the percentage scale.
type Hyper struct {
	M0     float64 `yaml:"m0" env:"M0"`           // prior mean of the first state
	C0     float64 `yaml:"c0" env:"C0"`           // prior variance of the first state
	Floor  float64 `yaml:"floor" env:"FLOOR"`     // observation variance floor
	Scale  float64 `yaml:"scale" env:"SCALE"`     // inverse gamma scale of ψ
	BiasSD float64 `yaml:"bias_sd" env:"BIAS_SD"` // prior sd of biases
}

// DefaultHyper centers the first state at an even split.
func DefaultHyper() Hyper {
	return Hyper{
		M0:     50,
		C0:     16,
		Floor:  0.01,
		Scale:  50,
		BiasSD: 5,
	}
}

// Missing variances are replaced by this value in the variance
// design; the corresponding observations are skipped anyway.
const placeholder = 1.

// Options of a sampler run.
type Options struct {
	Iterations int
	// Election-day pseudo-poll, on the proportion scale.
	FinalMean, FinalSD float64
	Hyper              Hyper
	// Variates, if nil, are gonum variates seeded with Seed.
	Variates model.Variates
	Seed     uint64
	// Progress, if not nil, is called after every iteration.
	Progress func(*State)
}

// State is the sampler state after an iteration, on the
// percentage scale. The slices are reused between iterations.
type State struct {
	Iteration int
	Theta     []float64
	Psi       float64
	// Lambda holds the biases of all columns, the pseudo-poll
	// last; its mean is zero.
	Lambda []float64
}

// Archive holds the posterior draws on the proportion scale.
type Archive struct {
	// Periods of trajectory rows; the last one, 0, is election day.
	Periods   []int
	Pollsters []string
	Theta     *mat.Dense // (T+1) × n trajectories
	Psi       []float64  // n innovation variances
	Lambda    *mat.Dense // n × P pollster biases
	// Log joint density of every draw on the percentage scale.
	LogJoint []float64
}

func (o *Options) validate() error {
	h := o.Hyper
	switch {
	case o.Iterations < 1:
		return fmt.Errorf("%w: iterations %d < 1", panel.ErrInput, o.Iterations)
	case !(o.FinalMean >= 0 && o.FinalMean <= 1):
		return fmt.Errorf("%w: final prior mean %v outside [0, 1]",
			panel.ErrInput, o.FinalMean)
	case !(o.FinalSD > 0):
		return fmt.Errorf("%w: final prior sd %v not positive",
			panel.ErrInput, o.FinalSD)
	case !(h.C0 > 0 && h.Scale > 0 && h.BiasSD > 0 && h.Floor >= 0):
		return fmt.Errorf("%w: hyperparameters %+v", panel.ErrInput, h)
	}
	return nil
}

// Run draws opts.Iterations samples from the posterior given
// the panel. No archive is returned on error.
func Run(p *panel.Panel, opts Options) (*Archive, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	T, P := p.Y.Dims()
	if T == 0 || P == 0 {
		return nil, fmt.Errorf("%w: empty panel", panel.ErrInput)
	}
	if !p.Y.Aligned(p.V) {
		return nil, fmt.Errorf("%w: estimates and variances not aligned",
			panel.ErrInput)
	}
	h := opts.Hyper
	variates := opts.Variates
	if variates == nil {
		variates = model.NewVariates(opts.Seed)
	}

	// The election-day target is one more row, observed only
	// by the pseudo-poll in one more column.
	y := p.Y.Augment(1, 1)
	v := p.V.Augment(1, 1)
	y.Set(T, P, panel.Scale*opts.FinalMean)
	v.Set(T, P, panel.Scale*panel.Scale*opts.FinalSD*opts.FinalSD)

	pr := &priors.Priors{Scale: h.Scale, BiasSD: h.BiasSD}
	psi, err := model.DrawInverseGamma(variates, pr.Shape(), pr.Scale)
	if err != nil {
		return nil, fmt.Errorf("initial innovation variance: %w", err)
	}
	dlm := model.DLM{
		M0:    h.M0,
		C0:    h.C0,
		G:     1,
		W:     psi,
		Floor: h.Floor,
		V:     v.Complete(placeholder),
	}
	lambda := make([]float64, P+1)
	for j := 0; j != P; j++ {
		lambda[j], err = model.DrawNormal(variates, 0, h.BiasSD*h.BiasSD)
		if err != nil {
			return nil, fmt.Errorf("initial bias %d: %w", j, err)
		}
	}

	n := opts.Iterations
	a := &Archive{
		Periods:   append(append([]int(nil), p.Periods...), 0),
		Pollsters: append([]string(nil), p.Pollsters...),
		Theta:     mat.NewDense(T+1, n, nil),
		Psi:       make([]float64, n),
		Lambda:    mat.NewDense(n, P, nil),
		LogJoint:  make([]float64, n),
	}

	log.WithFields(log.Fields{
		"periods":    T,
		"pollsters":  P,
		"iterations": n,
		"psi":        psi,
	}).Debug("sampler: starting")

	state := &State{Lambda: lambda}
	yadj := y.Clone()
	for it := 0; it != n; it++ {
		// Trajectory given biases and innovation variance
		adjust(yadj, y, lambda)
		theta, err := dlm.WithW(psi).FFBS(yadj, variates)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: trajectory: %w", it, err)
		}
		a.Theta.SetCol(it, theta)

		// Innovation variance given the trajectory
		shape, scale := pr.Posterior(len(theta)-1, sumSqDiff(theta))
		psi, err = model.DrawInverseGamma(variates, shape, scale)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: innovation variance: %w",
				it, err)
		}
		a.Psi[it] = psi

		// Biases given the trajectory; the pseudo-poll is
		// the reference.
		for j := 0; j != P; j++ {
			prec, wres, err := residuals(y, dlm, theta, j)
			if err != nil {
				return nil, fmt.Errorf("iteration %d: bias %d: %w", it, j, err)
			}
			mean, vari := pr.BiasPosterior(prec, wres)
			lambda[j], err = model.DrawNormal(variates, mean, vari)
			if err != nil {
				return nil, fmt.Errorf("iteration %d: bias %d: %w", it, j, err)
			}
		}
		lambda[P] = 0
		center(lambda)
		a.Lambda.SetRow(it, lambda[:P])

		a.LogJoint[it] = logJoint(pr, dlm.WithW(psi), y, theta, lambda)

		if opts.Progress != nil {
			state.Iteration = it
			state.Theta = theta
			state.Psi = psi
			opts.Progress(state)
		}
	}

	rescale(a)
	log.WithFields(log.Fields{
		"iterations": n,
	}).Debug("sampler: done")
	return a, nil
}

// adjust stores y minus the column biases in yadj.
func adjust(yadj, y *obs.Matrix, lambda []float64) {
	rows, cols := y.Dims()
	for t := 0; t != rows; t++ {
		for j := 0; j != cols; j++ {
			if yj := y.At(t, j); yj.Valid {
				yadj.Set(t, j, yj.X-lambda[j])
			}
		}
	}
}

// sumSqDiff is the sum of squared increments of theta.
func sumSqDiff(theta []float64) float64 {
	ss := 0.
	for t := 1; t < len(theta); t++ {
		d := theta[t] - theta[t-1]
		ss += d * d
	}
	return ss
}

// residuals returns the sum of precisions and of
// precision-weighted residuals of column j, using the
// observation variances of the filter.
func residuals(
	y *obs.Matrix,
	dlm model.DLM,
	theta []float64,
	j int,
) (prec, wres float64, err error) {
	rows, _ := y.Dims()
	for t := 0; t != rows; t++ {
		yj := y.At(t, j)
		if !yj.Valid {
			continue
		}
		v := math.Max(dlm.V.At(t, j), dlm.Floor)
		if !(v > 0) {
			return 0, 0, fmt.Errorf("%w: observation variance %v in period row %d",
				model.ErrNumerical, v, t)
		}
		prec += 1 / v
		wres += (yj.X - theta[t]) / v
	}
	return prec, wres, nil
}

// center subtracts the mean from all biases: the level of the
// trajectory and the biases are identified only up to a
// common constant.
func center(lambda []float64) {
	mean := floats.Sum(lambda) / float64(len(lambda))
	floats.AddConst(-mean, lambda)
}

// rescale brings the archive to the proportion scale.
func rescale(a *Archive) {
	toProportion := func(_, _ int, x float64) float64 {
		return x / panel.Scale
	}
	a.Theta.Apply(toProportion, a.Theta)
	a.Lambda.Apply(toProportion, a.Lambda)
	for i := range a.Psi {
		a.Psi[i] /= panel.Scale * panel.Scale
	}
}
