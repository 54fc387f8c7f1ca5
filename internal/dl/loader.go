package dl

import (
	"context"
	"fmt"
	"math"
	"time"

	"GrowthOpt/internal/domain/models"
	"GrowthOpt/internal/domain/repository"
	"GrowthOpt/pkg/logger"
)

// Mode selects what a loader prepares its dataset for.
type Mode int

const (
	// Train builds overlapping labeled windows across the history.
	Train Mode = iota
	// Test builds the most recent labeled windows for out-of-sample scoring.
	Test
	// Forecast builds one unlabeled window per ticker ending at the last day.
	Forecast
)

// Loader serves batches of examples derived from security histories.
// Batches are indexed, not streamed, so training can cycle over epochs
// without rebuilding the dataset.
type Loader interface {
	// NumBatches returns the number of batches in one pass over the dataset.
	NumBatches() int
	// Batch returns the i-th batch. i must be in [0, NumBatches).
	Batch(i int) (Batch, error)
	// DatasetLen returns the total number of examples.
	DatasetLen() int
	// HistoryDays returns the length of the feature window.
	HistoryDays() int
	// Features lists the batch fields, predictive features first and the
	// label last.
	Features() []string
}

// LoaderFactory builds loaders for a ticker universe and end date.
type LoaderFactory interface {
	NewLoader(ctx context.Context, tickers []string, end time.Time, data models.DataParams, mode Mode) (Loader, error)
}

// Predictive features derivable from a window of daily returns.
const (
	featureMean       = "mean"
	featureVolatility = "volatility"
	featureMomentum   = "momentum"
)

func defaultFeatures() []string {
	return []string{featureMean, featureVolatility, featureMomentum}
}

// QuoteLoaders builds loaders backed by the quote repository.
type QuoteLoaders struct {
	quotes repository.Quotes
	log    *logger.Logger
}

func NewQuoteLoaders(quotes repository.Quotes, log *logger.Logger) *QuoteLoaders {
	return &QuoteLoaders{
		quotes: quotes,
		log:    log.With("quote_loaders"),
	}
}

// NewLoader fetches the required span of daily returns and materializes the
// dataset for the given mode. Examples are ordered ticker-major, oldest
// window first within each ticker.
func (f *QuoteLoaders) NewLoader(ctx context.Context, tickers []string, end time.Time, data models.DataParams, mode Mode) (Loader, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("dl: empty ticker universe")
	}

	features := data.Features
	if features == nil {
		features = defaultFeatures()
	}

	for _, name := range features {
		switch name {
		case featureMean, featureVolatility, featureMomentum:
		default:
			return nil, fmt.Errorf("dl: unknown feature %q", name)
		}
	}

	perTicker, days := datasetSpan(data, mode)

	returns, err := f.quotes.Returns(ctx, tickers, end, days)
	if err != nil {
		return nil, fmt.Errorf("load %d days of returns: %w", days, err)
	}

	if len(returns) != days {
		return nil, fmt.Errorf("dl: got %d days of returns, need %d", len(returns), days)
	}

	f.log.Debug("dataset ready",
		logger.Int("tickers", len(tickers)),
		logger.Int("days", days),
		logger.Int("examples", perTicker*len(tickers)),
	)

	return &quoteLoader{
		returns:   returns,
		tickers:   len(tickers),
		perTicker: perTicker,
		mode:      mode,
		features:  features,
		data:      data,
	}, nil
}

// datasetSpan returns the examples per ticker and the days of history the
// mode requires. Training covers one history window of examples, testing
// scores the single most recent labeled window, forecasting needs one
// unlabeled window.
func datasetSpan(data models.DataParams, mode Mode) (perTicker, days int) {
	switch mode {
	case Train:
		return data.HistoryDays, 2*data.HistoryDays + data.ForecastDays - 1
	case Test:
		return 1, data.HistoryDays + data.ForecastDays
	default:
		return 1, data.HistoryDays
	}
}

type quoteLoader struct {
	returns   [][]float64 // days x tickers, ascending by date
	tickers   int
	perTicker int
	mode      Mode
	features  []string
	data      models.DataParams
}

func (l *quoteLoader) DatasetLen() int  { return l.perTicker * l.tickers }
func (l *quoteLoader) HistoryDays() int { return l.data.HistoryDays }

func (l *quoteLoader) NumBatches() int {
	return (l.DatasetLen() + l.data.BatchSize - 1) / l.data.BatchSize
}

func (l *quoteLoader) Features() []string {
	names := make([]string, 0, len(l.features)+1)
	names = append(names, l.features...)

	return append(names, LabelKey)
}

func (l *quoteLoader) Batch(i int) (Batch, error) {
	if i < 0 || i >= l.NumBatches() {
		return nil, fmt.Errorf("dl: batch index %d out of %d", i, l.NumBatches())
	}

	first := i * l.data.BatchSize
	last := first + l.data.BatchSize
	if last > l.DatasetLen() {
		last = l.DatasetLen()
	}

	batch := make(Batch, len(l.features)+1)
	for _, name := range l.features {
		batch[name] = make([]float64, 0, last-first)
	}

	if l.mode != Forecast {
		batch[LabelKey] = make([]float64, 0, last-first)
	}

	for idx := first; idx < last; idx++ {
		ticker := idx / l.perTicker
		pos := idx % l.perTicker

		window := l.column(ticker, pos, l.data.HistoryDays)

		for _, name := range l.features {
			batch[name] = append(batch[name], computeFeature(name, window))
		}

		if l.mode != Forecast {
			label := l.column(ticker, pos+l.data.HistoryDays, l.data.ForecastDays)
			batch[LabelKey] = append(batch[LabelKey], compoundReturn(label))
		}
	}

	return batch, nil
}

// column copies n consecutive daily returns of one ticker starting at row.
func (l *quoteLoader) column(ticker, row, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = l.returns[row+i][ticker]
	}

	return out
}

func computeFeature(name string, window []float64) float64 {
	switch name {
	case featureMean:
		return meanOf(window)
	case featureVolatility:
		m := meanOf(window)
		var acc float64
		for _, v := range window {
			acc += (v - m) * (v - m)
		}
		return math.Sqrt(acc / float64(len(window)))
	default: // featureMomentum
		return compoundReturn(window)
	}
}

func meanOf(values []float64) float64 {
	var acc float64
	for _, v := range values {
		acc += v
	}

	return acc / float64(len(values))
}

func compoundReturn(values []float64) float64 {
	gross := 1.0
	for _, v := range values {
		gross *= 1 + v
	}

	return gross - 1
}
