package sampler

import (
	"bitbucket.org/dtolpin/dlmpoll/model"
	"bitbucket.org/dtolpin/dlmpoll/obs"
	"bitbucket.org/dtolpin/dlmpoll/panel"
	"errors"
	"gonum.org/v1/gonum/mat"
	"math"
	"testing"
)

const eps = 1e-9

// fixedVariates returns the mean of normal draws and a fixed
// innovation variance.
type fixedVariates struct {
	psi float64
}

func (fixedVariates) Normal(mu, _ float64) float64 { return mu }

func (v fixedVariates) InverseGamma(_, _ float64) float64 { return v.psi }

// grid returns polls of every pollster in every period.
func grid(pollsters []string, periods int, n int, share func(j, period int) float64) []panel.Poll {
	var polls []panel.Poll
	for j, name := range pollsters {
		for period := 1; period <= periods; period++ {
			polls = append(polls, panel.Poll{
				Pollster:   name,
				Period:     period,
				SampleSize: n,
				Share:      obs.Some(share(j, period)),
			})
		}
	}
	return polls
}

func build(t *testing.T, polls []panel.Poll, cutoff int) *panel.Panel {
	t.Helper()
	p, err := panel.Build(polls, cutoff)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return p
}

func TestArchiveShapes(t *testing.T) {
	polls := grid([]string{"a", "b"}, 4, 800,
		func(j, period int) float64 { return 0.45 + 0.01*float64(j+period) })
	// the nearest period is dropped but still has a row
	p := build(t, polls, 2)
	for _, n := range []int{1, 3, 17} {
		a, err := Run(p, Options{
			Iterations: n,
			FinalMean:  0.5,
			FinalSD:    0.03,
			Hyper:      DefaultHyper(),
			Seed:       uint64(n),
		})
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if r, c := a.Theta.Dims(); r != 5 || c != n {
			t.Errorf("n=%d: trajectory %d×%d, want 5×%d", n, r, c, n)
		}
		if len(a.Psi) != n {
			t.Errorf("n=%d: %d variances", n, len(a.Psi))
		}
		if r, c := a.Lambda.Dims(); r != n || c != 2 {
			t.Errorf("n=%d: biases %d×%d, want %d×2", n, r, c, n)
		}
		if len(a.Periods) != 5 || a.Periods[4] != 0 || a.Periods[0] != 4 {
			t.Errorf("n=%d: periods %v", n, a.Periods)
		}
		if len(a.LogJoint) != n {
			t.Errorf("n=%d: %d log densities", n, len(a.LogJoint))
		}
	}
}

func TestBiasesCentered(t *testing.T) {
	polls := grid([]string{"a", "b", "c"}, 6, 1000,
		func(j, _ int) float64 { return 0.46 + 0.03*float64(j) })
	p := build(t, polls, 1)
	iterations := 0
	_, err := Run(p, Options{
		Iterations: 20,
		FinalMean:  0.5,
		FinalSD:    0.03,
		Hyper:      DefaultHyper(),
		Seed:       3,
		Progress: func(s *State) {
			if s.Iteration != iterations {
				t.Errorf("iteration %d reported as %d", iterations, s.Iteration)
			}
			iterations++
			if len(s.Lambda) != 4 {
				t.Fatalf("bias vector of length %d, want 4", len(s.Lambda))
			}
			mean := 0.
			for _, l := range s.Lambda {
				mean += l
			}
			mean /= float64(len(s.Lambda))
			if math.Abs(mean) > eps {
				t.Errorf("iteration %d: mean bias %v", s.Iteration, mean)
			}
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if iterations != 20 {
		t.Errorf("progress called %d times, want 20", iterations)
	}
}

func TestScaleRoundTrip(t *testing.T) {
	for _, c := range []struct {
		share, psi float64
	}{
		{0.5, 4},
		{0.25, 9},
		{0.75, 1},
	} {
		polls := grid([]string{"a", "b"}, 3, 1000,
			func(_, _ int) float64 { return c.share })
		p := build(t, polls, 1)
		hyper := DefaultHyper()
		hyper.M0 = panel.Scale * c.share
		a, err := Run(p, Options{
			Iterations: 4,
			FinalMean:  c.share,
			FinalSD:    0.03,
			Hyper:      hyper,
			Variates:   fixedVariates{c.psi},
		})
		if err != nil {
			t.Fatalf("share %v: %v", c.share, err)
		}
		r, n := a.Theta.Dims()
		for i := 0; i != r; i++ {
			for j := 0; j != n; j++ {
				if got := a.Theta.At(i, j); got != c.share {
					t.Errorf("share %v: theta[%d, %d] = %v", c.share, i, j, got)
				}
			}
		}
		for i, psi := range a.Psi {
			if want := c.psi / (panel.Scale * panel.Scale); psi != want {
				t.Errorf("share %v: psi[%d] = %v, want %v", c.share, i, psi, want)
			}
		}
		if !mat.Equal(a.Lambda, mat.NewDense(n, 2, nil)) {
			t.Errorf("share %v: biases %v, want zeros", c.share, mat.Formatted(a.Lambda))
		}
	}
}

func TestBiasRecovery(t *testing.T) {
	// With fixed draws, a pollster reading two points above the
	// others gets the largest bias.
	polls := grid([]string{"a", "b", "c"}, 5, 2000,
		func(j, _ int) float64 {
			if j == 1 {
				return 0.52
			}
			return 0.50
		})
	p := build(t, polls, 1)
	a, err := Run(p, Options{
		Iterations: 10,
		FinalMean:  0.5,
		FinalSD:    0.03,
		Hyper:      DefaultHyper(),
		Variates:   fixedVariates{1},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	last := mat.Row(nil, 9, a.Lambda)
	if !(last[1] > last[0] && last[1] > last[2]) {
		t.Errorf("biases %v: pollster b not the largest", last)
	}
	if math.Abs(last[0]-last[2]) > 1e-6 {
		t.Errorf("biases %v: a and c differ", last)
	}
}

func TestScenario(t *testing.T) {
	shares := [][]float64{
		{0.48, 0.50, 0.49, 0.51, 0.50},
		{0.52, 0.53, 0.51, 0.52, 0.54},
		{0.47, 0.49, 0.48, 0.50, 0.49},
	}
	const n = 1000
	polls := grid([]string{"a", "b", "c"}, 5, n,
		func(j, period int) float64 { return shares[j][period-1] })
	p := build(t, polls, 1)
	a, err := Run(p, Options{
		Iterations: 50,
		FinalMean:  0.5,
		FinalSD:    0.03,
		Hyper:      DefaultHyper(),
		Seed:       2024,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	lo, hi := 1., 0.
	se := 0.
	for _, row := range shares {
		for _, s := range row {
			lo = math.Min(lo, s)
			hi = math.Max(hi, s)
			se = math.Max(se, math.Sqrt(s*(1-s)/n))
		}
	}
	lo, hi = lo-3*se, hi+3*se

	r, c := a.Theta.Dims()
	for i := 0; i != r; i++ {
		mean := 0.
		for j := 0; j != c; j++ {
			x := a.Theta.At(i, j)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				t.Fatalf("theta[%d, %d] = %v", i, j, x)
			}
			mean += x
		}
		mean /= float64(c)
		if mean < lo || mean > hi {
			t.Errorf("period %d: mean %.4f outside [%.4f, %.4f]",
				a.Periods[i], mean, lo, hi)
		}
	}
	for i, psi := range a.Psi {
		if !(psi > 0) {
			t.Errorf("psi[%d] = %v", i, psi)
		}
	}
}

func TestDeterministicGivenSeed(t *testing.T) {
	polls := grid([]string{"a", "b"}, 4, 600,
		func(j, period int) float64 { return 0.4 + 0.02*float64(j*period) })
	p := build(t, polls, 1)
	opts := Options{
		Iterations: 5,
		FinalMean:  0.45,
		FinalSD:    0.05,
		Hyper:      DefaultHyper(),
		Seed:       11,
	}
	a, err := Run(p, opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := Run(p, opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !mat.Equal(a.Theta, b.Theta) || !mat.Equal(a.Lambda, b.Lambda) {
		t.Errorf("equal seeds gave different draws")
	}
}

func TestRunErrors(t *testing.T) {
	polls := grid([]string{"a"}, 3, 500,
		func(_, _ int) float64 { return 0.5 })
	p := build(t, polls, 1)
	for i, opts := range []Options{
		{Iterations: 0, FinalMean: 0.5, FinalSD: 0.03, Hyper: DefaultHyper()},
		{Iterations: 5, FinalMean: 1.5, FinalSD: 0.03, Hyper: DefaultHyper()},
		{Iterations: 5, FinalMean: 0.5, FinalSD: 0, Hyper: DefaultHyper()},
		{Iterations: 5, FinalMean: 0.5, FinalSD: 0.03},
	} {
		a, err := Run(p, opts)
		if !errors.Is(err, panel.ErrInput) || a != nil {
			t.Errorf("%d: got %v, want ErrInput", i, err)
		}
	}

	// A unanimous poll has zero binomial variance; without a
	// floor the filter cannot use it.
	polls[1].Share = obs.Some(0)
	p = build(t, polls, 1)
	hyper := DefaultHyper()
	hyper.Floor = 0
	a, err := Run(p, Options{
		Iterations: 5,
		FinalMean:  0.5,
		FinalSD:    0.03,
		Hyper:      hyper,
		Seed:       1,
	})
	if !errors.Is(err, model.ErrNumerical) || a != nil {
		t.Errorf("zero variance: got %v, want ErrNumerical", err)
	}
}
