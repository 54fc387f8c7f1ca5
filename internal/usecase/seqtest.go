package usecase

import (
	"fmt"
	"math"

	"GrowthOpt/internal/seq"
	"GrowthOpt/pkg/logger"
)

// Verdicts of a sequential median test against zero.
const (
	VerdictGreater      = "greater"
	VerdictLess         = "less"
	VerdictInconclusive = "inconclusive"
)

// SeqTester runs anytime-valid median tests over growing samples, typically
// quality metric differences between two model configurations.
type SeqTester struct {
	log *logger.Logger
}

func NewSeqTester(log *logger.Logger) *SeqTester {
	return &SeqTester{log: log.With("seqtest")}
}

// SeqTestResult is the confidence interval for the sample median. A nil
// bound is unbounded: the sample is still too small to say anything at the
// requested confidence.
type SeqTestResult struct {
	Lower      *float64 `json:"lower"`
	Upper      *float64 `json:"upper"`
	Samples    int      `json:"samples"`
	MinSamples int      `json:"min_samples"`
	Verdict    string   `json:"verdict"`
}

// Test computes the time-uniform median confidence interval of the sample
// and judges it against zero. The interval stays valid under optional
// stopping, so callers may extend the sample and test again at will.
func (s *SeqTester) Test(sample []float64, pValue float64) (*SeqTestResult, error) {
	if len(sample) == 0 {
		return nil, fmt.Errorf("empty sample")
	}

	if pValue <= 0 || pValue >= 1 {
		return nil, fmt.Errorf("p-value %v out of (0, 1)", pValue)
	}

	for i, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("sample[%d] = %v", i, v)
		}
	}

	lower, upper := seq.MedianConfBound(sample, pValue)

	result := &SeqTestResult{
		Samples:    len(sample),
		MinSamples: seq.MinimumBoundingN(pValue),
		Verdict:    VerdictInconclusive,
	}

	if !math.IsInf(lower, -1) {
		result.Lower = &lower
	}
	if !math.IsInf(upper, 1) {
		result.Upper = &upper
	}

	switch {
	case result.Lower != nil && lower > 0:
		result.Verdict = VerdictGreater
	case result.Upper != nil && upper < 0:
		result.Verdict = VerdictLess
	}

	s.log.Debug("median test",
		logger.Int("samples", result.Samples),
		logger.Float64("p_value", pValue),
		logger.String("verdict", result.Verdict),
	)

	return result, nil
}

// Compare tests whether a candidate model beats an incumbent on paired
// quality metric samples. The verdict refers to the median of the pairwise
// differences candidate minus incumbent.
func (s *SeqTester) Compare(candidate, incumbent []float64, pValue float64) (*SeqTestResult, error) {
	if len(candidate) != len(incumbent) {
		return nil, fmt.Errorf("unpaired samples: %d vs %d", len(candidate), len(incumbent))
	}

	deltas := make([]float64, len(candidate))
	for i := range deltas {
		deltas[i] = candidate[i] - incumbent[i]
	}

	return s.Test(deltas, pValue)
}
