package dl

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"GrowthOpt/internal/domain/models"
	"GrowthOpt/pkg/logger"
)

// stubQuotes serves deterministic synthetic daily returns. Values are small
// enough that compounded gross returns stay positive.
type stubQuotes struct {
	maxDays int
}

func (s *stubQuotes) Returns(_ context.Context, tickers []string, _ time.Time, days int) ([][]float64, error) {
	if s.maxDays > 0 && days > s.maxDays {
		return nil, fmt.Errorf("only %d days of history available, need %d", s.maxDays, days)
	}

	out := make([][]float64, days)
	for i := range out {
		row := make([]float64, len(tickers))
		for j := range row {
			row[j] = 0.002*math.Sin(float64(i+1)*float64(j+2)) + 0.0005*float64(j)
		}
		out[i] = row
	}

	return out, nil
}

func (s *stubQuotes) Health(context.Context) error { return nil }
func (s *stubQuotes) Close() error                 { return nil }

type stubMetrics struct{}

func (stubMetrics) RecordTrainStep(string)               {}
func (stubMetrics) RecordTrainAbort(string)              {}
func (stubMetrics) RecordRunningLLH(string, float64)     {}
func (stubMetrics) RecordEvalLLH(string, float64)        {}
func (stubMetrics) RecordPortfolio(string, int, float64) {}
func (stubMetrics) RecordLatency(string, float64)        {}

type stubOptimizer struct {
	ir float64
}

func (s stubOptimizer) Portfolio(_ context.Context, mean, variance, labels []float64, tickers []string, _ time.Time, _ models.Phenotype) (float64, error) {
	if len(mean) != len(tickers) || len(variance) != len(tickers) || len(labels) != len(tickers) {
		return 0, fmt.Errorf("misaligned portfolio inputs: %d/%d/%d for %d tickers", len(mean), len(variance), len(labels), len(tickers))
	}

	return s.ir, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	return log
}

func testPhenotype() models.Phenotype {
	p, err := models.NewPhenotype()
	if err != nil {
		panic(err)
	}

	p.Data.HistoryDays = 8
	p.Data.ForecastDays = 2
	p.Data.BatchSize = 4

	return p
}

func testFactory(t *testing.T, quotes *stubQuotes) *Factory {
	t.Helper()

	log := testLogger(t)

	return NewFactory(
		NewQuoteLoaders(quotes, log),
		stubOptimizer{ir: 0.5},
		stubMetrics{},
		log,
		DeviceCPU,
		0,
	)
}
