package dl

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestQuoteLoaderTrainShape(t *testing.T) {
	phen := testPhenotype()
	factory := NewQuoteLoaders(&stubQuotes{}, testLogger(t))

	tickers := []string{"AAA", "BBB"}

	loader, err := factory.NewLoader(context.Background(), tickers, time.Now(), phen.Data, Train)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	wantLen := phen.Data.HistoryDays * len(tickers)
	if got := loader.DatasetLen(); got != wantLen {
		t.Fatalf("DatasetLen = %d, want %d", got, wantLen)
	}

	wantBatches := (wantLen + phen.Data.BatchSize - 1) / phen.Data.BatchSize
	if got := loader.NumBatches(); got != wantBatches {
		t.Fatalf("NumBatches = %d, want %d", got, wantBatches)
	}

	names := loader.Features()
	if names[len(names)-1] != LabelKey {
		t.Fatalf("last feature = %q, want %q", names[len(names)-1], LabelKey)
	}

	var examples int
	for i := 0; i < loader.NumBatches(); i++ {
		batch, err := loader.Batch(i)
		if err != nil {
			t.Fatalf("Batch(%d): %v", i, err)
		}

		n := len(batch[LabelKey])
		if n == 0 || n > phen.Data.BatchSize {
			t.Fatalf("batch %d has %d examples", i, n)
		}

		for _, name := range names {
			if len(batch[name]) != n {
				t.Fatalf("batch %d field %s has %d values, want %d", i, name, len(batch[name]), n)
			}
		}

		examples += n
	}

	if examples != wantLen {
		t.Fatalf("batches cover %d examples, want %d", examples, wantLen)
	}
}

func TestQuoteLoaderLabelIsForwardReturn(t *testing.T) {
	phen := testPhenotype()
	quotes := &stubQuotes{}
	factory := NewQuoteLoaders(quotes, testLogger(t))

	tickers := []string{"AAA"}
	end := time.Now()

	loader, err := factory.NewLoader(context.Background(), tickers, end, phen.Data, Train)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	batch, err := loader.Batch(0)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	_, days := datasetSpan(phen.Data, Train)
	returns, err := quotes.Returns(context.Background(), tickers, end, days)
	if err != nil {
		t.Fatalf("Returns: %v", err)
	}

	// First example: label compounds the forecast horizon right after the
	// oldest history window.
	gross := 1.0
	for i := phen.Data.HistoryDays; i < phen.Data.HistoryDays+phen.Data.ForecastDays; i++ {
		gross *= 1 + returns[i][0]
	}

	if got := batch[LabelKey][0]; math.Abs(got-(gross-1)) > 1e-12 {
		t.Fatalf("label = %v, want %v", got, gross-1)
	}
}

func TestQuoteLoaderForecastMode(t *testing.T) {
	phen := testPhenotype()
	factory := NewQuoteLoaders(&stubQuotes{}, testLogger(t))

	tickers := []string{"AAA", "BBB", "CCC"}

	loader, err := factory.NewLoader(context.Background(), tickers, time.Now(), phen.Data, Forecast)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	if got := loader.DatasetLen(); got != len(tickers) {
		t.Fatalf("DatasetLen = %d, want %d", got, len(tickers))
	}

	batch, err := loader.Batch(0)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	if _, ok := batch[LabelKey]; ok {
		t.Fatal("forecast batch must not carry labels")
	}

	if got := len(batch[featureMean]); got != len(tickers) {
		t.Fatalf("forecast batch has %d examples, want %d", got, len(tickers))
	}
}

func TestQuoteLoaderRejectsUnknownFeature(t *testing.T) {
	phen := testPhenotype()
	phen.Data.Features = []string{"alpha_decay"}

	factory := NewQuoteLoaders(&stubQuotes{}, testLogger(t))

	if _, err := factory.NewLoader(context.Background(), []string{"AAA"}, time.Now(), phen.Data, Train); err == nil {
		t.Fatal("expected error for unknown feature")
	}
}
