// Package model implements the dynamic linear model of latent
// opinion: a scalar state following an AR(1) transition (a random
// walk when G is 1), observed through unit loadings by every
// pollster column with per-cell measurement variance.
package model

import (
	"bitbucket.org/dtolpin/dlmpoll/obs"
	"fmt"
	"gonum.org/v1/gonum/mat"
	"math"
)

// DLM is the filter configuration for one pass. It is a value:
// the sampler builds a new one for every innovation variance
// instead of modifying it.
type DLM struct {
	M0, C0 float64    // prior of the first state
	G      float64    // transition coefficient
	W      float64    // innovation variance
	Floor  float64    // lower bound of observation variances
	V      *mat.Dense // complete observation variance design
}

// WithW returns a copy of d with innovation variance w.
func (d DLM) WithW(w float64) DLM {
	d.W = w
	return d
}

// Filtered holds the forward pass: one-step predictive
// moments A, R and filtered moments M, C of each state.
type Filtered struct {
	A, R []float64
	M, C []float64
}

// Filter runs the Kalman filter over y, which must have the
// shape of V. Missing cells do not contribute to the likelihood.
func (d DLM) Filter(y *obs.Matrix) (*Filtered, error) {
	T, m := y.Dims()
	if vT, vm := d.V.Dims(); vT != T || vm != m {
		return nil, fmt.Errorf("%w: observations %d×%d, variances %d×%d",
			ErrNumerical, T, m, vT, vm)
	}
	if !(d.C0 > 0) {
		return nil, fmt.Errorf("%w: initial variance %v", ErrNumerical, d.C0)
	}
	if !(d.W > 0) {
		return nil, fmt.Errorf("%w: innovation variance %v", ErrNumerical, d.W)
	}

	f := &Filtered{
		A: make([]float64, T),
		R: make([]float64, T),
		M: make([]float64, T),
		C: make([]float64, T),
	}
	for t := 0; t != T; t++ {
		var a, r float64
		if t == 0 {
			a, r = d.M0, d.C0
		} else {
			a = d.G * f.M[t-1]
			r = d.G*d.G*f.C[t-1] + d.W
		}
		f.A[t], f.R[t] = a, r

		// The measurement covariance is diagonal, so the
		// observations of a period are absorbed one at a time.
		mt, ct := a, r
		for j, yj := range y.Row(t) {
			if !yj.Valid {
				continue
			}
			v := math.Max(d.V.At(t, j), d.Floor)
			if !(v > 0) {
				return nil, fmt.Errorf("%w: observation variance %v at (%d, %d)",
					ErrNumerical, v, t, j)
			}
			q := ct + v
			k := ct / q
			mt += k * (yj.X - mt)
			ct = ct * v / q
		}
		f.M[t], f.C[t] = mt, ct
	}
	return f, nil
}

// Sample draws a joint trajectory of all states given the
// forward pass, backwards from the last state.
func (d DLM) Sample(f *Filtered, v Variates) ([]float64, error) {
	T := len(f.M)
	theta := make([]float64, T)
	if T == 0 {
		return theta, nil
	}

	var err error
	theta[T-1], err = DrawNormal(v, f.M[T-1], f.C[T-1])
	if err != nil {
		return nil, fmt.Errorf("state %d: %w", T-1, err)
	}
	for t := T - 2; t >= 0; t-- {
		// gain of the smoother, C_t G / R_{t+1}
		b := f.C[t] * d.G / f.R[t+1]
		h := f.M[t] + b*(theta[t+1]-f.A[t+1])
		// C_t - b²R_{t+1}, in a form that stays positive
		H := f.C[t] * d.W / f.R[t+1]
		theta[t], err = DrawNormal(v, h, H)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", t, err)
		}
	}
	return theta, nil
}

// FFBS filters y and draws one trajectory.
func (d DLM) FFBS(y *obs.Matrix, v Variates) ([]float64, error) {
	f, err := d.Filter(y)
	if err != nil {
		return nil, err
	}
	return d.Sample(f, v)
}
