// Package summary reduces posterior archives to per-period and
// per-pollster means, standard deviations and intervals.
package summary

import (
	"bitbucket.org/dtolpin/dlmpoll/sampler"
	"fmt"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"math"
	"sort"
)

// Row summarizes the draws of a single quantity.
type Row struct {
	Label    string
	Mean, SD float64
	Lower    float64 // lower percentile
	Upper    float64 // upper percentile
	Draws    int
}

// Burn returns a view of the archive without the first k draws.
func Burn(a *sampler.Archive, k int) (*sampler.Archive, error) {
	_, n := a.Theta.Dims()
	if k < 0 || k >= n {
		return nil, fmt.Errorf("cannot burn %d of %d draws", k, n)
	}
	r, _ := a.Theta.Dims()
	_, P := a.Lambda.Dims()
	return &sampler.Archive{
		Periods:   a.Periods,
		Pollsters: a.Pollsters,
		Theta:     a.Theta.Slice(0, r, k, n).(*mat.Dense),
		Psi:       a.Psi[k:],
		Lambda:    a.Lambda.Slice(k, n, 0, P).(*mat.Dense),
		LogJoint:  a.LogJoint[k:],
	}, nil
}

// Trajectory summarizes the latent state of every period; lo and
// hi are percentiles in (0, 100].
func Trajectory(a *sampler.Archive, lo, hi float64) ([]Row, error) {
	r, _ := a.Theta.Dims()
	rows := make([]Row, r)
	for i := range rows {
		label := fmt.Sprintf("%d", a.Periods[i])
		row, err := summarize(label, mat.Row(nil, i, a.Theta), lo, hi)
		if err != nil {
			return nil, fmt.Errorf("period %s: %w", label, err)
		}
		rows[i] = row
	}
	return rows, nil
}

// Houses summarizes the bias of every pollster.
func Houses(a *sampler.Archive, lo, hi float64) ([]Row, error) {
	_, P := a.Lambda.Dims()
	rows := make([]Row, P)
	for j := range rows {
		row, err := summarize(a.Pollsters[j], mat.Col(nil, j, a.Lambda), lo, hi)
		if err != nil {
			return nil, fmt.Errorf("pollster %s: %w", a.Pollsters[j], err)
		}
		rows[j] = row
	}
	return rows, nil
}

// Volatility summarizes the standard deviation of period-to-period
// opinion moves, the square root of the innovation variance.
func Volatility(a *sampler.Archive, lo, hi float64) (Row, error) {
	sd := make([]float64, len(a.Psi))
	for i, psi := range a.Psi {
		sd[i] = math.Sqrt(psi)
	}
	return summarize("volatility", sd, lo, hi)
}

func summarize(label string, x []float64, lo, hi float64) (Row, error) {
	if !(lo > 0 && lo < hi && hi <= 100) {
		return Row{}, fmt.Errorf("invalid percentiles %v, %v", lo, hi)
	}
	row := Row{Label: label, Draws: len(x)}
	var err error
	if row.Mean, err = stats.Mean(x); err != nil {
		return Row{}, err
	}
	if row.SD, err = stats.StandardDeviation(x); err != nil {
		return Row{}, err
	}
	// Empirical quantiles are defined for any number of draws.
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	row.Lower = stat.Quantile(lo/100, stat.Empirical, sorted, nil)
	row.Upper = stat.Quantile(hi/100, stat.Empirical, sorted, nil)
	return row, nil
}
