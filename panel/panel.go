// Package panel turns raw poll rows into aligned estimate and
// variance matrices indexed by period and pollster.
package panel

import (
	"bitbucket.org/dtolpin/dlmpoll/obs"
	"errors"
	"fmt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"sort"
)

// ErrInput is returned for polls or options that cannot be used.
var ErrInput = errors.New("invalid input")

// Percentage scale of estimates; variances are scaled by its square.
const Scale = 100.

// Poll is a single raw poll row. Period counts periods before the
// election, starting at 1.
type Poll struct {
	Pollster   string
	Period     int
	SampleSize int
	Share      obs.Value
}

// Panel is the matrix pair (Y, V). Rows follow Periods, which
// descend from the furthest period to period 1; columns follow
// Pollsters.
type Panel struct {
	Periods   []int
	Pollsters []string
	Y, V      *obs.Matrix
}

type key struct {
	pollster string
	period   int
}

type group struct {
	shares, sizes []float64
}

// cell is an aggregated (period, pollster) estimate on the
// percentage scale.
type cell struct {
	mean, vari float64
}

// Build aggregates polls into a panel, retaining periods at or
// before periodsToElection.
func Build(polls []Poll, periodsToElection int) (*Panel, error) {
	if periodsToElection < 1 {
		return nil, fmt.Errorf("%w: periods to election %d < 1",
			ErrInput, periodsToElection)
	}
	if err := validate(polls); err != nil {
		return nil, err
	}

	// Group by (pollster, period), skipping rows without
	// a share and groups closer than the cutoff.
	groups := make(map[key]*group)
	for _, p := range polls {
		if !p.Share.Valid || p.Period < periodsToElection {
			continue
		}
		k := key{p.Pollster, p.Period}
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
		}
		g.shares = append(g.shares, p.Share.X)
		g.sizes = append(g.sizes, float64(p.SampleSize))
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no polls at or before period %d",
			ErrInput, periodsToElection)
	}

	cells := make(map[key]cell, len(groups))
	maxPeriod := 0
	seen := make(map[string]bool)
	for k, g := range groups {
		mean := stat.Mean(g.shares, g.sizes)
		n := floats.Sum(g.sizes)
		cells[k] = cell{
			mean: Scale * mean,
			vari: Scale * Scale * mean * (1 - mean) / n,
		}
		seen[k.pollster] = true
		if k.period > maxPeriod {
			maxPeriod = k.period
		}
	}

	pollsters := make([]string, 0, len(seen))
	for name := range seen {
		pollsters = append(pollsters, name)
	}
	sort.Strings(pollsters)

	periods := make([]int, maxPeriod)
	for i := range periods {
		periods[i] = maxPeriod - i
	}

	p := &Panel{
		Periods:   periods,
		Pollsters: pollsters,
		Y:         obs.NewMatrix(len(periods), len(pollsters)),
		V:         obs.NewMatrix(len(periods), len(pollsters)),
	}
	for i, period := range periods {
		for j, name := range pollsters {
			c, ok := cells[key{name, period}]
			if !ok {
				continue
			}
			p.Y.Set(i, j, c.mean)
			p.V.Set(i, j, c.vari)
		}
	}
	return p, nil
}

func validate(polls []Poll) error {
	for i, p := range polls {
		switch {
		case p.Period < 1:
			return fmt.Errorf("%w: poll %d (%s): period %d < 1",
				ErrInput, i, p.Pollster, p.Period)
		case p.SampleSize < 1:
			return fmt.Errorf("%w: poll %d (%s): sample size %d < 1",
				ErrInput, i, p.Pollster, p.SampleSize)
		case p.Share.Valid && !(p.Share.X >= 0 && p.Share.X <= 1):
			return fmt.Errorf("%w: poll %d (%s): share %v outside [0, 1]",
				ErrInput, i, p.Pollster, p.Share.X)
		}
	}
	return nil
}

// Row returns the row index of period, or -1.
func (p *Panel) Row(period int) int {
	i := len(p.Periods) - period
	if i < 0 || i >= len(p.Periods) {
		return -1
	}
	return i
}
