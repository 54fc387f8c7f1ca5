package repository

import (
	"context"
	"time"

	"GrowthOpt/internal/domain/models"
)

// Quotes provides daily return history for a set of tickers. Implementations
// must return series aligned to the requested ticker order.
type Quotes interface {
	// Returns produces a days x len(tickers) matrix of one-day relative
	// returns ending at end (rows ascending in time). It fails when any
	// ticker lacks the requested depth of history.
	Returns(ctx context.Context, tickers []string, end time.Time, days int) ([][]float64, error)
	Health(ctx context.Context) error
	Close() error
}

// ModelStore persists trained weight blobs keyed by model identity.
// An absent key yields (nil, nil): absence of weights means "untrained".
type ModelStore interface {
	Save(ctx context.Context, key string, blob []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Reports publishes portfolio diagnostic records for downstream consumers.
type Reports interface {
	Publish(ctx context.Context, report *models.PortfolioReport) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordTrainStep(model string)
	RecordTrainAbort(reason string)
	RecordRunningLLH(model string, llh float64)
	RecordEvalLLH(model string, llh float64)
	RecordPortfolio(universe string, positions int, maxWeight float64)
	RecordLatency(op string, seconds float64)
}
