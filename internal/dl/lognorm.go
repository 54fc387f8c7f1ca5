package dl

import (
	"fmt"
	"math"
)

func init() {
	Register("lognorm", newLogNorm)
}

const logSqrt2Pi = 0.9189385332046727 // ln(sqrt(2*pi))

// logNorm predicts a log-normal distribution over gross returns with two
// affine heads: one for the location and one for the log scale. The log
// scale head keeps the predicted deviation positive without clamping.
type logNorm struct {
	features []string
	params   []float64 // [wMu..., bMu, wSigma..., bSigma]
	device   Device
}

// newLogNorm builds an untrained module. The scale bias starts negative so
// the initial predictive deviation is small, and a "repeat" parameter can
// widen the module by duplicating the heads for capacity experiments.
func newLogNorm(historyDays int, features []string, params map[string]float64) (Module, error) {
	_ = historyDays

	repeat := 1
	if r, ok := params["repeat"]; ok {
		if r < 1 {
			return nil, fmt.Errorf("lognorm: repeat must be at least 1, got %v", r)
		}
		repeat = int(r)
	}

	d := len(features)
	m := &logNorm{
		features: append([]string(nil), features...),
		params:   make([]float64, repeat*(2*d+2)),
		device:   DeviceCPU,
	}

	// The scale bias of the first head; every other parameter starts at zero.
	m.params[2*d+1] = -3

	return m, nil
}

func (m *logNorm) Parameters() []float64 { return m.params }

func (m *logNorm) SetParameters(params []float64) error {
	if len(params) != len(m.params) {
		return fmt.Errorf("lognorm: got %d parameters, want %d", len(params), len(m.params))
	}

	copy(m.params, params)

	return nil
}

func (m *logNorm) To(device Device) { m.device = device }

// heads computes the location and log scale for every example in the batch.
func (m *logNorm) heads(batch Batch) (mu, logSigma []float64, err error) {
	d := len(m.features)

	var n int
	for _, name := range m.features {
		col, ok := batch[name]
		if !ok {
			return nil, nil, fmt.Errorf("lognorm: batch has no %s field", name)
		}
		if n != 0 && len(col) != n {
			return nil, nil, fmt.Errorf("lognorm: ragged batch field %s", name)
		}
		n = len(col)
	}

	mu = make([]float64, n)
	logSigma = make([]float64, n)

	for i := 0; i < n; i++ {
		mu[i] = m.params[d]
		logSigma[i] = m.params[2*d+1]

		for k, name := range m.features {
			z := batch[name][i]
			mu[i] += m.params[k] * z
			logSigma[i] += m.params[d+1+k] * z
		}
	}

	return mu, logSigma, nil
}

func (m *logNorm) Dist(batch Batch) (Distribution, error) {
	mu, logSigma, err := m.heads(batch)
	if err != nil {
		return nil, err
	}

	return &logNormDist{mu: mu, logSigma: logSigma}, nil
}

// Gradient accumulates the gradient of the summed negative log likelihood
// over the batch into grad and returns the loss. Only the first head pair
// receives gradient; duplicated heads are capacity ballast.
func (m *logNorm) Gradient(grad []float64, batch Batch) (float64, error) {
	if len(grad) != len(m.params) {
		return 0, fmt.Errorf("lognorm: got gradient of %d, want %d", len(grad), len(m.params))
	}

	labels, ok := batch[LabelKey]
	if !ok {
		return 0, fmt.Errorf("lognorm: batch has no %s field", LabelKey)
	}

	mu, logSigma, err := m.heads(batch)
	if err != nil {
		return 0, err
	}

	d := len(m.features)

	var loss float64
	for i, label := range labels {
		sigma := math.Exp(logSigma[i])
		logX := math.Log(label + 1)
		z := (logX - mu[i]) / sigma

		loss += logX + logSigma[i] + logSqrt2Pi + z*z/2

		// d(nll)/d(mu) and d(nll)/d(logSigma) for this example.
		dMu := -z / sigma
		dLogSigma := 1 - z*z

		grad[d] += dMu
		grad[2*d+1] += dLogSigma

		for k, name := range m.features {
			v := batch[name][i]
			grad[k] += dMu * v
			grad[d+1+k] += dLogSigma * v
		}
	}

	return loss, nil
}

// logNormDist is the per-example predictive distribution over gross returns.
type logNormDist struct {
	mu       []float64
	logSigma []float64
}

func (d *logNormDist) Mean() []float64 {
	out := make([]float64, len(d.mu))
	for i := range out {
		s2 := math.Exp(2 * d.logSigma[i])
		out[i] = math.Exp(d.mu[i] + s2/2)
	}

	return out
}

func (d *logNormDist) Variance() []float64 {
	out := make([]float64, len(d.mu))
	for i := range out {
		s2 := math.Exp(2 * d.logSigma[i])
		out[i] = (math.Exp(s2) - 1) * math.Exp(2*d.mu[i]+s2)
	}

	return out
}

func (d *logNormDist) LogProb(values []float64) []float64 {
	out := make([]float64, len(d.mu))
	for i := range out {
		sigma := math.Exp(d.logSigma[i])
		logX := math.Log(values[i])
		z := (logX - d.mu[i]) / sigma

		out[i] = -logX - d.logSigma[i] - logSqrt2Pi - z*z/2
	}

	return out
}
