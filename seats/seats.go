// Package seats computes the probability of winning more than k
// seats under a uniform national swing, its gradient, and the
// swing required to reach a given probability.
//
// Seat i is won when V[i] + delta + e > 1/2, where V[i] is the
// baseline share in the seat, delta the expected national swing,
// and e ~ N(0, sigma²) the uncertainty of the swing, common to
// all seats. More than k seats are won when the (k+1)-th best
// seat is won.
package seats

import (
	"bitbucket.org/dtolpin/infergo/infer"
	"bitbucket.org/dtolpin/infergo/model"
	"fmt"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
	"math"
	"sort"
)

// pivot returns the index of the (k+1)-th largest share.
func pivot(v []float64, k int) (int, error) {
	if k < 0 || k >= len(v) {
		return 0, fmt.Errorf("k=%d outside [0, %d)", k, len(v))
	}
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return v[idx[a]] > v[idx[b]]
	})
	return idx[k], nil
}

func score(v []float64, delta, sigma float64, k int) (z float64, i int, err error) {
	if !(sigma > 0) {
		return 0, 0, fmt.Errorf("sigma=%v not positive", sigma)
	}
	i, err = pivot(v, k)
	if err != nil {
		return 0, 0, err
	}
	return (v[i] + delta - 0.5) / sigma, i, nil
}

// Prob returns the probability of winning more than k seats.
func Prob(v []float64, delta, sigma float64, k int) (float64, error) {
	z, _, err := score(v, delta, sigma, k)
	if err != nil {
		return 0, err
	}
	return distuv.UnitNormal.CDF(z), nil
}

// Gradient of Prob with respect to the seat shares, the swing
// and its standard deviation.
type Gradient struct {
	V     []float64
	Delta float64
	Sigma float64
}

// Grad returns the gradient of Prob. Only the pivotal seat has
// a non-zero share derivative.
func Grad(v []float64, delta, sigma float64, k int) (*Gradient, error) {
	z, i, err := score(v, delta, sigma, k)
	if err != nil {
		return nil, err
	}
	phi := distuv.UnitNormal.Prob(z)
	g := &Gradient{
		V:     make([]float64, len(v)),
		Delta: phi / sigma,
		Sigma: -phi * z / sigma,
	}
	g.V[i] = phi / sigma
	return g, nil
}

// Model is the log-likelihood of Target as the observed frequency
// of winning, as a function of the standardized swing x[0], the
// swing in units of sigma past the point where the pivotal seat is
// a toss-up. It is concave and maximal where Φ(x[0]) = Target.
type Model struct {
	Target float64
	grad   []float64
}

var _ model.Model = &Model{}

func (m *Model) Observe(x []float64) float64 {
	const (
		z = iota // standardized swing
	)

	win := 0.5 * math.Erfc(-x[z]/math.Sqrt2)
	loss := 0.5 * math.Erfc(x[z]/math.Sqrt2)
	phi := distuv.UnitNormal.Prob(x[z])
	m.grad = []float64{m.Target*phi/win - (1-m.Target)*phi/loss}
	return m.Target*math.Log(win) + (1-m.Target)*math.Log(loss)
}

func (m *Model) Gradient() []float64 {
	return m.grad
}

// tolerance of the probability at the required swing
const tolerance = 1e-6

// RequiredSwing returns the national swing at which more than k
// seats are won with probability target.
func RequiredSwing(v []float64, sigma float64, k int, target float64) (float64, error) {
	if !(target > 0 && target < 1) {
		return 0, fmt.Errorf("target=%v outside (0, 1)", target)
	}
	i, err := pivot(v, k)
	if err != nil {
		return 0, err
	}
	if !(sigma > 0) {
		return 0, fmt.Errorf("sigma=%v not positive", sigma)
	}
	m := &Model{Target: target}

	// Start where the pivotal seat is a toss-up.
	x := []float64{0}
	Func, Grad := infer.FuncGrad(m)
	p := optimize.Problem{Func: Func, Grad: Grad}
	result, err := optimize.Minimize(p, x, nil, nil)
	if result == nil {
		return 0, fmt.Errorf("optimize: %v", err)
	}
	swing := 0.5 - v[i] + sigma*result.X[0]

	// The line search may complain at the optimum; accept the
	// result if the target is reached.
	prob, perr := Prob(v, swing, sigma, k)
	if perr != nil {
		return 0, perr
	}
	if math.IsNaN(prob) || math.Abs(prob-target) > tolerance {
		if err == nil {
			err = fmt.Errorf("probability %v at swing %v", prob, swing)
		}
		return 0, fmt.Errorf("optimize: target %v not reached: %v", target, err)
	}
	return swing, nil
}
