package sampler

import (
	"bitbucket.org/dtolpin/dlmpoll/model"
	"bitbucket.org/dtolpin/dlmpoll/obs"
	"bitbucket.org/dtolpin/dlmpoll/priors"
	. "bitbucket.org/dtolpin/infergo/dist"
	"math"
)

// logJoint is the log density of a draw: priors of the
// innovation variance and the pollster biases, the random walk
// of the trajectory, and the observations.
func logJoint(
	pr *priors.Priors,
	dlm model.DLM,
	y *obs.Matrix,
	theta, lambda []float64,
) float64 {
	P := len(lambda) - 1
	x := make([]float64, 1+P)
	x[0] = dlm.W
	copy(x[1:], lambda[:P])
	ll := pr.Observe(x)

	// Trajectory
	ll += Normal.Logp(dlm.M0, math.Sqrt(dlm.C0), theta[0])
	sd := math.Sqrt(dlm.W)
	for t := 1; t < len(theta); t++ {
		ll += Normal.Logp(dlm.G*theta[t-1], sd, theta[t])
	}

	// Observations
	rows, cols := y.Dims()
	for t := 0; t != rows; t++ {
		for j := 0; j != cols; j++ {
			yj := y.At(t, j)
			if !yj.Valid {
				continue
			}
			v := math.Max(dlm.V.At(t, j), dlm.Floor)
			ll += Normal.Logp(theta[t]+lambda[j], math.Sqrt(v), yj.X)
		}
	}
	return ll
}
