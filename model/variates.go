package model

import (
	"errors"
	"fmt"
	"gonum.org/v1/gonum/stat/distuv"
	"math"
	"math/rand/v2"
)

// ErrNumerical is returned when a draw receives a variance or
// distribution parameter that is not positive and finite.
var ErrNumerical = errors.New("numerical error")

// Variates draws the random quantities of the sampler.
type Variates interface {
	// Normal draws from N(mu, variance).
	Normal(mu, variance float64) float64
	// InverseGamma draws from IG(shape, scale).
	InverseGamma(shape, scale float64) float64
}

type variates struct {
	src rand.Source
}

// NewVariates returns variates backed by gonum distributions
// and a PCG source seeded with seed.
func NewVariates(seed uint64) Variates {
	return variates{src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

func (v variates) Normal(mu, variance float64) float64 {
	d := distuv.Normal{
		Mu:    mu,
		Sigma: math.Sqrt(variance),
		Src:   v.src,
	}
	return d.Rand()
}

func (v variates) InverseGamma(shape, scale float64) float64 {
	d := distuv.InverseGamma{
		Alpha: shape,
		Beta:  scale,
		Src:   v.src,
	}
	return d.Rand()
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}

// DrawNormal draws from N(mu, variance), failing on a
// non-positive variance.
func DrawNormal(v Variates, mu, variance float64) (float64, error) {
	if !positive(variance) || math.IsNaN(mu) || math.IsInf(mu, 0) {
		return 0, fmt.Errorf("%w: normal(%v, %v)", ErrNumerical, mu, variance)
	}
	return v.Normal(mu, variance), nil
}

// DrawInverseGamma draws from IG(shape, scale), failing on
// non-positive parameters.
func DrawInverseGamma(v Variates, shape, scale float64) (float64, error) {
	if !positive(shape) || !positive(scale) {
		return 0, fmt.Errorf("%w: inverse gamma(%v, %v)",
			ErrNumerical, shape, scale)
	}
	x := v.InverseGamma(shape, scale)
	if !positive(x) {
		return 0, fmt.Errorf("%w: inverse gamma(%v, %v) drew %v",
			ErrNumerical, shape, scale, x)
	}
	return x, nil
}
