package usecase

import (
	"math"
	"testing"

	"GrowthOpt/pkg/logger"
)

func testSeqTester(t *testing.T) *SeqTester {
	t.Helper()

	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	return NewSeqTester(log)
}

func TestSeqTesterGreater(t *testing.T) {
	s := testSeqTester(t)

	sample := make([]float64, 300)
	for i := range sample {
		sample[i] = 1 + 0.01*float64(i%7)
	}

	result, err := s.Test(sample, 0.05)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}

	if result.Verdict != VerdictGreater {
		t.Fatalf("verdict = %s, want %s", result.Verdict, VerdictGreater)
	}

	if result.Lower == nil || *result.Lower <= 0 {
		t.Fatalf("lower bound = %v, want positive", result.Lower)
	}
}

func TestSeqTesterLess(t *testing.T) {
	s := testSeqTester(t)

	sample := make([]float64, 300)
	for i := range sample {
		sample[i] = -1 - 0.01*float64(i%7)
	}

	result, err := s.Test(sample, 0.05)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}

	if result.Verdict != VerdictLess {
		t.Fatalf("verdict = %s, want %s", result.Verdict, VerdictLess)
	}
}

func TestSeqTesterShortSampleInconclusive(t *testing.T) {
	s := testSeqTester(t)

	result, err := s.Test([]float64{1, 2, 3}, 0.05)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}

	if result.Verdict != VerdictInconclusive {
		t.Fatalf("verdict = %s, want %s", result.Verdict, VerdictInconclusive)
	}

	if result.Lower != nil || result.Upper != nil {
		t.Fatalf("bounds = %v/%v, want unbounded", result.Lower, result.Upper)
	}

	if result.MinSamples <= len([]float64{1, 2, 3}) {
		t.Fatalf("min samples = %d, want larger than the sample", result.MinSamples)
	}
}

func TestSeqTesterCompare(t *testing.T) {
	s := testSeqTester(t)

	candidate := make([]float64, 200)
	incumbent := make([]float64, 200)
	for i := range candidate {
		candidate[i] = -0.5 + 0.001*float64(i%11)
		incumbent[i] = -1.5 + 0.001*float64(i%13)
	}

	result, err := s.Compare(candidate, incumbent, 0.05)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	if result.Verdict != VerdictGreater {
		t.Fatalf("verdict = %s, want %s", result.Verdict, VerdictGreater)
	}

	if _, err := s.Compare(candidate, incumbent[:10], 0.05); err == nil {
		t.Fatal("expected error for unpaired samples")
	}
}

func TestSeqTesterRejectsBadInput(t *testing.T) {
	s := testSeqTester(t)

	if _, err := s.Test(nil, 0.05); err == nil {
		t.Fatal("expected error for empty sample")
	}

	if _, err := s.Test([]float64{1}, 0); err == nil {
		t.Fatal("expected error for p-value 0")
	}

	if _, err := s.Test([]float64{1}, 1); err == nil {
		t.Fatal("expected error for p-value 1")
	}

	if _, err := s.Test([]float64{math.NaN()}, 0.05); err == nil {
		t.Fatal("expected error for NaN sample")
	}
}
