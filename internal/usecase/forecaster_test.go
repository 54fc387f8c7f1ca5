package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"GrowthOpt/internal/dl"
	"GrowthOpt/internal/domain/models"
	"GrowthOpt/internal/repository"
	"GrowthOpt/pkg/cache"
	"GrowthOpt/pkg/logger"
)

type stubQuotes struct{}

func (stubQuotes) Returns(_ context.Context, tickers []string, _ time.Time, days int) ([][]float64, error) {
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

func (stubQuotes) Health(context.Context) error { return nil }
func (stubQuotes) Close() error                 { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordTrainStep(string)               {}
func (nopMetrics) RecordTrainAbort(string)              {}
func (nopMetrics) RecordRunningLLH(string, float64)     {}
func (nopMetrics) RecordEvalLLH(string, float64)        {}
func (nopMetrics) RecordPortfolio(string, int, float64) {}
func (nopMetrics) RecordLatency(string, float64)        {}

type fixedPortfolio struct{}

func (fixedPortfolio) Portfolio(context.Context, []float64, []float64, []float64, []string, time.Time, models.Phenotype) (float64, error) {
	return 0.4, nil
}

type equalWeights struct{}

func (equalWeights) WeightsForForecast(_ context.Context, f *models.Forecast, _ models.Phenotype) ([]float64, *mat.SymDense, error) {
	n := len(f.Tickers)

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}

	return w, mat.NewSymDense(n, nil), nil
}

func testForecaster(t *testing.T) *Forecaster {
	t.Helper()

	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	factory := dl.NewFactory(
		dl.NewQuoteLoaders(stubQuotes{}, log),
		fixedPortfolio{},
		nopMetrics{},
		log,
		dl.DeviceCPU,
		0,
	)

	store := repository.NewCachedModelStore(cache.NewMemoryStore(), time.Hour, log)

	return NewForecaster(factory, equalWeights{}, store, nopMetrics{}, log)
}

func testRequest() ForecastRequest {
	phen := models.Phenotype{}
	phen.Data.HistoryDays = 8
	phen.Data.ForecastDays = 2
	phen.Data.BatchSize = 4

	return ForecastRequest{
		Tickers:   []string{"BBB", "AAA"},
		Date:      time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
		Phenotype: &phen,
	}
}

func TestForecasterTrainsThenRestores(t *testing.T) {
	s := testForecaster(t)
	req := testRequest()

	first, err := s.Forecast(context.Background(), req)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if !first.Retrained {
		t.Fatal("first forecast must train a fresh model")
	}

	if len(first.Weights) != len(req.Tickers) {
		t.Fatalf("got %d weights for %d tickers", len(first.Weights), len(req.Tickers))
	}

	if first.IR != 0.4 {
		t.Fatalf("ir = %v, want 0.4", first.IR)
	}

	second, err := s.Forecast(context.Background(), req)
	if err != nil {
		t.Fatalf("repeat Forecast: %v", err)
	}

	if second.Retrained {
		t.Fatal("second forecast must restore persisted weights")
	}

	for i := range first.Forecast.Mean {
		if second.Forecast.Mean[i] != first.Forecast.Mean[i] {
			t.Fatalf("mean[%d] changed after restore: %v vs %v",
				i, second.Forecast.Mean[i], first.Forecast.Mean[i])
		}
	}
}

func TestForecasterNormalizesTickers(t *testing.T) {
	s := testForecaster(t)
	req := testRequest()

	result, err := s.Forecast(context.Background(), req)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	want := []string{"AAA", "BBB"}
	for i, ticker := range result.Forecast.Tickers {
		if ticker != want[i] {
			t.Fatalf("tickers = %v, want %v", result.Forecast.Tickers, want)
		}
	}

	// Ordering and case do not change the model identity.
	req.Tickers = []string{"aaa", " BBB "}

	again, err := s.Forecast(context.Background(), req)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if again.ModelKey != result.ModelKey {
		t.Fatalf("model keys differ: %s vs %s", again.ModelKey, result.ModelKey)
	}
}

func TestForecasterRejectsBadUniverse(t *testing.T) {
	s := testForecaster(t)

	cases := [][]string{
		nil,
		{""},
		{"AAA", "aaa"},
	}

	for i, tickers := range cases {
		req := testRequest()
		req.Tickers = tickers

		if _, err := s.Forecast(context.Background(), req); err == nil {
			t.Fatalf("case %d (%v): expected error", i, tickers)
		}
	}
}

func TestForecasterRejectsInvalidPhenotype(t *testing.T) {
	s := testForecaster(t)

	req := testRequest()
	req.Phenotype.Data.HistoryDays = -1

	if _, err := s.Forecast(context.Background(), req); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestForecasterInvalidateForcesRetrain(t *testing.T) {
	s := testForecaster(t)
	req := testRequest()

	if _, err := s.Forecast(context.Background(), req); err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	key, err := s.InvalidateModel(context.Background(), req)
	if err != nil {
		t.Fatalf("InvalidateModel: %v", err)
	}

	if key == "" {
		t.Fatal("empty model key")
	}

	result, err := s.Forecast(context.Background(), req)
	if err != nil {
		t.Fatalf("Forecast after invalidate: %v", err)
	}

	if !result.Retrained {
		t.Fatal("forecast after invalidation must retrain")
	}
}

func TestModelKeyDependsOnInputs(t *testing.T) {
	phen, err := models.NewPhenotype()
	if err != nil {
		t.Fatalf("phenotype: %v", err)
	}

	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	base := modelKey([]string{"AAA", "BBB"}, date, phen)

	if got := modelKey([]string{"AAA", "CCC"}, date, phen); got == base {
		t.Fatal("key must depend on the universe")
	}

	if got := modelKey([]string{"AAA", "BBB"}, date.AddDate(0, 0, 1), phen); got == base {
		t.Fatal("key must depend on the date")
	}

	other := phen
	other.Data.HistoryDays++

	if got := modelKey([]string{"AAA", "BBB"}, date, other); got == base {
		t.Fatal("key must depend on the hyperparameters")
	}
}
