package kernel

// The linear similarity kernel. A Gaussian process with this
// kernel is Bayesian linear regression with independent zero-mean
// normal priors on the intercept and the slope.
type Linear struct {
	Bias  float64 // prior variance of the intercept
	Slope float64 // prior variance of the slope
	grad  []float64
}

func (k *Linear) Observe(x []float64) float64 {
	const (
		xa = iota // first point
		xb        // second point
	)

	k.grad = []float64{k.Slope * x[xb], k.Slope * x[xa]}
	return k.Bias + k.Slope*x[xa]*x[xb]
}

func (k *Linear) Gradient() []float64 {
	return k.grad
}

func (*Linear) NTheta() int { return 0 }
