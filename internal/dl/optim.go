package dl

import (
	"math"

	"GrowthOpt/internal/domain/models"
)

// adamW applies decoupled weight decay updates over a flat parameter vector.
type adamW struct {
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64

	m []float64
	v []float64
	t int
}

func newAdamW(p models.OptimizerParams, size int) *adamW {
	return &adamW{
		beta1:       p.Beta1,
		beta2:       p.Beta2,
		eps:         p.Eps,
		weightDecay: p.WeightDecay,
		m:           make([]float64, size),
		v:           make([]float64, size),
	}
}

// Step updates params in place using grad and the given learning rate.
// Weight decay is applied directly to the parameters, not folded into the
// gradient.
func (o *adamW) Step(params, grad []float64, lr float64) {
	o.t++

	c1 := 1 - math.Pow(o.beta1, float64(o.t))
	c2 := 1 - math.Pow(o.beta2, float64(o.t))

	for i, g := range grad {
		o.m[i] = o.beta1*o.m[i] + (1-o.beta1)*g
		o.v[i] = o.beta2*o.v[i] + (1-o.beta2)*g*g

		mHat := o.m[i] / c1
		vHat := o.v[i] / c2

		params[i] -= lr * (mHat/(math.Sqrt(vHat)+o.eps) + o.weightDecay*params[i])
	}
}

// oneCycle produces the one-cycle learning rate schedule: cosine warmup from
// maxLR/divFactor up to maxLR over the first pctStart fraction of steps, then
// cosine annealing down to initialLR/finalDivFactor for the rest.
type oneCycle struct {
	totalSteps int
	upSteps    int
	initialLR  float64
	maxLR      float64
	minLR      float64
}

func newOneCycle(p models.SchedulerParams, totalSteps int) *oneCycle {
	initial := p.MaxLR / p.DivFactor

	return &oneCycle{
		totalSteps: totalSteps,
		upSteps:    int(p.PctStart * float64(totalSteps)),
		initialLR:  initial,
		maxLR:      p.MaxLR,
		minLR:      initial / p.FinalDivFactor,
	}
}

// LR returns the learning rate for the given zero-based step.
func (s *oneCycle) LR(step int) float64 {
	if step >= s.totalSteps {
		step = s.totalSteps - 1
	}

	if step < s.upSteps {
		return annealCos(s.initialLR, s.maxLR, fraction(step, s.upSteps))
	}

	return annealCos(s.maxLR, s.minLR, fraction(step-s.upSteps, s.totalSteps-s.upSteps))
}

func annealCos(start, end, pct float64) float64 {
	return end + (start-end)/2*(1+math.Cos(math.Pi*pct))
}

func fraction(step, span int) float64 {
	if span <= 1 {
		return 1
	}

	return float64(step) / float64(span-1)
}
