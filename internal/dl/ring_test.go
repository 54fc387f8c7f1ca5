package dl

import (
	"math"
	"testing"
)

func TestRingWindowSum(t *testing.T) {
	r := newRing(3)

	if r.Sum() != 0 {
		t.Fatalf("fresh ring sum = %v, want 0", r.Sum())
	}

	// Until the seed zero is evicted the sum covers every pushed value.
	r.push(1)
	r.push(2)
	r.push(3)

	if got := r.Sum(); got != 6 {
		t.Fatalf("sum after fill = %v, want 6", got)
	}

	// From here each push drops the oldest value.
	r.push(10)
	if got := r.Sum(); got != 15 {
		t.Fatalf("sum after first eviction = %v, want 15", got)
	}

	r.push(20)
	if got := r.Sum(); got != 33 {
		t.Fatalf("sum after second eviction = %v, want 33", got)
	}
}

func TestRingSizeOne(t *testing.T) {
	r := newRing(1)

	r.push(5)
	r.push(7)

	if got := r.Sum(); got != 7 {
		t.Fatalf("sum = %v, want 7", got)
	}
}

func TestOneCycleEndpoints(t *testing.T) {
	p := testPhenotype().Scheduler

	total := 100
	s := newOneCycle(p, total)

	initial := p.MaxLR / p.DivFactor

	if got := s.LR(0); math.Abs(got-initial) > 1e-12 {
		t.Fatalf("lr at step 0 = %v, want %v", got, initial)
	}

	peak := s.LR(s.upSteps - 1)
	if math.Abs(peak-p.MaxLR) > 1e-12 {
		t.Fatalf("peak lr = %v, want %v", peak, p.MaxLR)
	}

	final := s.LR(total - 1)
	if want := initial / p.FinalDivFactor; math.Abs(final-want) > 1e-12 {
		t.Fatalf("final lr = %v, want %v", final, want)
	}

	// The schedule rises to the peak and falls afterwards.
	for step := 1; step < s.upSteps; step++ {
		if s.LR(step) < s.LR(step-1) {
			t.Fatalf("lr decreased during warmup at step %d", step)
		}
	}

	for step := s.upSteps + 1; step < total; step++ {
		if s.LR(step) > s.LR(step-1) {
			t.Fatalf("lr increased during annealing at step %d", step)
		}
	}
}

func TestAdamWDescendsQuadratic(t *testing.T) {
	p := testPhenotype().Optimizer
	p.WeightDecay = 0

	params := []float64{5, -3}
	grad := make([]float64, 2)

	opt := newAdamW(p, len(params))

	loss := func() float64 { return params[0]*params[0] + params[1]*params[1] }

	before := loss()
	for i := 0; i < 200; i++ {
		grad[0] = 2 * params[0]
		grad[1] = 2 * params[1]
		opt.Step(params, grad, 0.05)
	}

	if after := loss(); after >= before {
		t.Fatalf("loss did not decrease: %v -> %v", before, after)
	}
}
