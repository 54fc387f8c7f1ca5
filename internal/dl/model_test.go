package dl

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"GrowthOpt/internal/domain/models"
)

func init() {
	// Architectures used only by tests: one over the parameter ceiling, one
	// exactly at it, and one whose loss collapses after the first step.
	Register("huge", func(_ int, _ []string, _ map[string]float64) (Module, error) {
		return &fixedModule{params: make([]float64, maxParams+1)}, nil
	})

	Register("big", func(_ int, _ []string, _ map[string]float64) (Module, error) {
		return &fixedModule{params: make([]float64, maxParams)}, nil
	})

	Register("collapse", func(_ int, _ []string, _ map[string]float64) (Module, error) {
		return &fixedModule{params: make([]float64, 1), collapse: true}, nil
	})
}

// fixedModule ignores its inputs. With collapse set, the per-example loss
// jumps from 1 to 1000 after the first Gradient call.
type fixedModule struct {
	params   []float64
	collapse bool
	calls    int
}

func (m *fixedModule) Parameters() []float64 { return m.params }

func (m *fixedModule) SetParameters(params []float64) error {
	if len(params) != len(m.params) {
		return fmt.Errorf("got %d parameters, want %d", len(params), len(m.params))
	}
	copy(m.params, params)
	return nil
}

func (m *fixedModule) To(Device) {}

func (m *fixedModule) Dist(batch Batch) (Distribution, error) {
	n := 0
	for _, col := range batch {
		n = len(col)
		break
	}
	return &logNormDist{mu: make([]float64, n), logSigma: make([]float64, n)}, nil
}

func (m *fixedModule) Gradient(_ []float64, batch Batch) (float64, error) {
	m.calls++

	perExample := 1.0
	if m.collapse && m.calls > 1 {
		perExample = 1000
	}

	return perExample * float64(len(batch[LabelKey])), nil
}

type countingOptimizer struct {
	calls int
	ir    float64
}

func (c *countingOptimizer) Portfolio(context.Context, []float64, []float64, []float64, []string, time.Time, models.Phenotype) (float64, error) {
	c.calls++
	return c.ir, nil
}

func TestModelTrainAndForecast(t *testing.T) {
	factory := testFactory(t, &stubQuotes{})
	tickers := []string{"AAA", "BBB"}

	m := factory.Model(tickers, time.Now(), testPhenotype(), nil)

	f, err := m.Forecast(context.Background())
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if len(f.Mean) != len(tickers) || len(f.Std) != len(tickers) {
		t.Fatalf("forecast dims %d/%d, want %d", len(f.Mean), len(f.Std), len(tickers))
	}

	for i := range f.Mean {
		if f.Std[i] <= 0 {
			t.Fatalf("std[%d] = %v, want positive", i, f.Std[i])
		}
	}
}

func TestModelQualityMetricsMemoized(t *testing.T) {
	log := testLogger(t)
	opt := &countingOptimizer{ir: 0.7}

	factory := NewFactory(NewQuoteLoaders(&stubQuotes{}, log), opt, stubMetrics{}, log, DeviceCPU, 0)
	m := factory.Model([]string{"AAA", "BBB"}, time.Now(), testPhenotype(), nil)

	llh1, ir1, err := m.QualityMetrics(context.Background())
	if err != nil {
		t.Fatalf("QualityMetrics: %v", err)
	}

	llh2, ir2, err := m.QualityMetrics(context.Background())
	if err != nil {
		t.Fatalf("QualityMetrics repeat: %v", err)
	}

	if llh1 != llh2 || ir1 != ir2 {
		t.Fatalf("memoized metrics differ: %v/%v vs %v/%v", llh1, ir1, llh2, ir2)
	}

	if ir1 != 0.7 {
		t.Fatalf("ir = %v, want 0.7", ir1)
	}

	if opt.calls != 1 {
		t.Fatalf("portfolio evaluated %d times, want 1", opt.calls)
	}
}

func TestModelSerializeRoundTrip(t *testing.T) {
	factory := testFactory(t, &stubQuotes{})
	tickers := []string{"AAA", "BBB"}
	end := time.Now()
	phen := testPhenotype()

	trained := factory.Model(tickers, end, phen, nil)

	want, err := trained.Forecast(context.Background())
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	blob := trained.Serialize()
	if len(blob) == 0 {
		t.Fatal("trained model serialized to empty blob")
	}

	restored := factory.Model(tickers, end, phen, blob)

	got, err := restored.Forecast(context.Background())
	if err != nil {
		t.Fatalf("restored Forecast: %v", err)
	}

	for i := range want.Mean {
		if got.Mean[i] != want.Mean[i] || got.Std[i] != want.Std[i] {
			t.Fatalf("forecast %d differs after restore: %v/%v vs %v/%v",
				i, got.Mean[i], got.Std[i], want.Mean[i], want.Std[i])
		}
	}

	// A restored and never retrained model hands back the original bytes.
	again := factory.Model(tickers, end, phen, blob)
	if _, err := again.Forecast(context.Background()); err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	reblob := again.Serialize()
	if len(reblob) != len(blob) {
		t.Fatalf("reserialized blob of %d bytes, want %d", len(reblob), len(blob))
	}
	for i := range blob {
		if reblob[i] != blob[i] {
			t.Fatalf("blob differs at byte %d", i)
		}
	}
}

func TestModelUntrainedSerializesEmpty(t *testing.T) {
	factory := testFactory(t, &stubQuotes{})

	m := factory.Model([]string{"AAA"}, time.Now(), testPhenotype(), nil)

	if blob := m.Serialize(); len(blob) != 0 {
		t.Fatalf("untrained model serialized %d bytes, want 0", len(blob))
	}
}

func TestModelTooLongHistory(t *testing.T) {
	factory := testFactory(t, &stubQuotes{maxDays: 5})

	m := factory.Model([]string{"AAA"}, time.Now(), testPhenotype(), nil)

	_, err := m.Forecast(context.Background())

	var target *TooLongHistoryError
	if !errors.As(err, &target) {
		t.Fatalf("err = %v, want TooLongHistoryError", err)
	}

	if !errors.Is(err, ErrModel) {
		t.Fatal("TooLongHistoryError must belong to ErrModel")
	}
}

func TestModelDegeneratedWithoutFeatures(t *testing.T) {
	factory := testFactory(t, &stubQuotes{})

	phen := testPhenotype()
	phen.Data.Features = []string{}

	m := factory.Model([]string{"AAA"}, time.Now(), phen, nil)

	_, err := m.Forecast(context.Background())

	var target *DegeneratedModelError
	if !errors.As(err, &target) {
		t.Fatalf("err = %v, want DegeneratedModelError", err)
	}

	if !errors.Is(err, ErrModel) {
		t.Fatal("DegeneratedModelError must belong to ErrModel")
	}
}

func TestModelTooManyParameters(t *testing.T) {
	factory := testFactory(t, &stubQuotes{})

	phen := testPhenotype()
	phen.Model.Type = "huge"

	m := factory.Model([]string{"AAA"}, time.Now(), phen, nil)

	_, err := m.Forecast(context.Background())

	var target *TooLargeModelError
	if !errors.As(err, &target) {
		t.Fatalf("err = %v, want TooLargeModelError", err)
	}
}

func TestModelBatchMemoryCeiling(t *testing.T) {
	factory := testFactory(t, &stubQuotes{})

	// At the parameter ceiling one example costs 8 MiB, so a batch of 30000
	// estimates well over the memory cap.
	phen := testPhenotype()
	phen.Model.Type = "big"
	phen.Data.BatchSize = 30000

	m := factory.Model([]string{"AAA"}, time.Now(), phen, nil)

	_, err := m.Forecast(context.Background())

	var target *TooLargeModelError
	if !errors.As(err, &target) {
		t.Fatalf("err = %v, want TooLargeModelError", err)
	}

	if !errors.Is(err, ErrModel) {
		t.Fatal("TooLargeModelError must belong to ErrModel")
	}
}

func TestModelGradientsErrorOnCollapse(t *testing.T) {
	factory := testFactory(t, &stubQuotes{})

	phen := testPhenotype()
	phen.Model.Type = "collapse"

	m := factory.Model([]string{"AAA", "BBB"}, time.Now(), phen, nil)

	_, err := m.Forecast(context.Background())

	var target *GradientsError
	if !errors.As(err, &target) {
		t.Fatalf("err = %v, want GradientsError", err)
	}

	if !errors.Is(err, ErrModel) {
		t.Fatal("GradientsError must belong to ErrModel")
	}
}

func TestModelWallClockBudget(t *testing.T) {
	factory := testFactory(t, &stubQuotes{})

	m := factory.Model([]string{"AAA", "BBB"}, time.Now(), testPhenotype(), nil)

	// Every clock read advances thirteen hours, so already the first step
	// extrapolates the full schedule far over one day.
	clock := time.Now()
	m.now = func() time.Time {
		clock = clock.Add(13 * time.Hour)
		return clock
	}

	_, err := m.Forecast(context.Background())

	var target *DegeneratedModelError
	if !errors.As(err, &target) {
		t.Fatalf("err = %v, want DegeneratedModelError", err)
	}
}

func TestModelTrainingHonorsContext(t *testing.T) {
	factory := testFactory(t, &stubQuotes{})

	m := factory.Model([]string{"AAA"}, time.Now(), testPhenotype(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Forecast(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
