package ledoitwolf

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func randomReturns(t, n int, seed int64) *mat.Dense {
	rnd := rand.New(rand.NewSource(seed))
	m := mat.NewDense(t, n, nil)
	for i := 0; i < t; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, rnd.NormFloat64()*0.02)
		}
	}
	return m
}

func TestShrinkWellFormed(t *testing.T) {
	returns := randomReturns(60, 5, 7)

	sigma, averageCor, shrink := Shrink(returns)

	n, _ := sigma.Dims()
	if n != 5 {
		t.Fatalf("dims = %d, want 5", n)
	}
	if shrink < 0 || shrink > 1 {
		t.Fatalf("shrink out of range: %v", shrink)
	}
	if math.Abs(averageCor) > 0.5 {
		t.Fatalf("independent columns yield large average correlation: %v", averageCor)
	}
	for i := 0; i < n; i++ {
		if math.Abs(sigma.At(i, i)-1) > 1e-12 {
			t.Fatalf("diagonal not 1 at %d: %v", i, sigma.At(i, i))
		}
		for j := 0; j < n; j++ {
			v := sigma.At(i, j)
			if math.Abs(v) > 1 {
				t.Fatalf("correlation out of range at (%d,%d): %v", i, j, v)
			}
			if math.Abs(v-sigma.At(j, i)) > 1e-12 {
				t.Fatalf("asymmetry at (%d,%d)", i, j)
			}
		}
	}
}

func TestShrinkPositiveSemiDefinite(t *testing.T) {
	// fewer observations than assets: the sample matrix is singular, the
	// shrunk one must still have no materially negative eigenvalues
	returns := randomReturns(8, 12, 3)

	sigma, _, _ := Shrink(returns)

	var eig mat.EigenSym
	if ok := eig.Factorize(sigma, false); !ok {
		t.Fatalf("eigen factorization failed")
	}
	for _, v := range eig.Values(nil) {
		if v < -1e-9 {
			t.Fatalf("negative eigenvalue: %v", v)
		}
	}
}

func TestShrinkPullsTowardAverage(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	tt, n := 20, 4
	returns := mat.NewDense(tt, n, nil)
	// two highly correlated assets among independent ones
	for i := 0; i < tt; i++ {
		base := rnd.NormFloat64() * 0.02
		returns.Set(i, 0, base)
		returns.Set(i, 1, base+rnd.NormFloat64()*0.002)
		returns.Set(i, 2, rnd.NormFloat64()*0.02)
		returns.Set(i, 3, rnd.NormFloat64()*0.02)
	}

	sigma, averageCor, shrink := Shrink(returns)
	if shrink <= 0 {
		t.Fatalf("expected positive shrinkage on noisy short history, got %v", shrink)
	}
	// the extreme pair must be pulled toward the average correlation
	if got := sigma.At(0, 1); got >= 0.9999 {
		t.Fatalf("pairwise correlation not shrunk: %v (average %v)", got, averageCor)
	}
}

func TestCompoundWindows(t *testing.T) {
	daily := [][]float64{
		{0.01}, {0.02}, {-0.01}, {0.03}, {0.01}, {-0.02}, {0.005},
	}

	out := compound(daily, 3)
	if len(out) != 2 {
		t.Fatalf("windows = %d, want 2", len(out))
	}
	// windows are anchored at the end: the first daily return is dropped
	want0 := (1+0.02)*(1-0.01)*(1+0.03) - 1
	want1 := (1+0.01)*(1-0.02)*(1+0.005) - 1
	if math.Abs(out[0][0]-want0) > 1e-12 || math.Abs(out[1][0]-want1) > 1e-12 {
		t.Fatalf("compound mismatch: got %v/%v want %v/%v", out[0][0], out[1][0], want0, want1)
	}
}
