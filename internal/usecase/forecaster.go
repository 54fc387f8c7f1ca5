// Package usecase wires models, the portfolio optimizer and persistence into
// the operations the API exposes.
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"GrowthOpt/internal/dl"
	"GrowthOpt/internal/domain/models"
	"GrowthOpt/internal/domain/repository"
	"GrowthOpt/pkg/logger"
)

type modelBuilder interface {
	Model(tickers []string, end time.Time, phen models.Phenotype, blob []byte) *dl.Model
}

type weightSolver interface {
	WeightsForForecast(ctx context.Context, f *models.Forecast, phen models.Phenotype) ([]float64, *mat.SymDense, error)
}

// Forecaster trains or restores a model for a ticker universe, produces a
// forecast and solves for portfolio weights.
type Forecaster struct {
	models  modelBuilder
	weights weightSolver
	store   repository.ModelStore
	metrics repository.Metrics
	log     *logger.Logger
}

func NewForecaster(models modelBuilder, weights weightSolver, store repository.ModelStore, metrics repository.Metrics, log *logger.Logger) *Forecaster {
	return &Forecaster{
		models:  models,
		weights: weights,
		store:   store,
		metrics: metrics,
		log:     log.With("forecaster"),
	}
}

// ForecastRequest describes one forecast run. A nil Phenotype means default
// hyperparameters.
type ForecastRequest struct {
	Tickers   []string
	Date      time.Time
	Phenotype *models.Phenotype
}

// ForecastResult carries the forecast, the optimal weights aligned to the
// forecast's ticker order and the model quality metrics. Retrained reports
// whether the model was trained in this call rather than restored.
type ForecastResult struct {
	Forecast  *models.Forecast
	Weights   []float64
	LLH       float64
	IR        float64
	ModelKey  string
	Retrained bool
}

func (s *Forecaster) Forecast(ctx context.Context, req ForecastRequest) (*ForecastResult, error) {
	started := time.Now()

	tickers, err := normalizeTickers(req.Tickers)
	if err != nil {
		return nil, err
	}

	phen, err := resolvePhenotype(req.Phenotype)
	if err != nil {
		return nil, err
	}

	key := modelKey(tickers, req.Date, phen)

	blob, err := s.store.Load(ctx, key)
	if err != nil {
		// A broken store only costs a retrain.
		s.log.Warn("weight load failed, training from scratch",
			logger.String("key", key),
			logger.Error(err),
		)
		blob = nil
	}

	model := s.models.Model(tickers, req.Date, phen, blob)

	llh, ir, err := model.QualityMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluate model: %w", err)
	}

	forecast, err := model.Forecast(ctx)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	weights, _, err := s.weights.WeightsForForecast(ctx, forecast, phen)
	if err != nil {
		return nil, fmt.Errorf("solve weights: %w", err)
	}

	retrained := len(blob) == 0
	if retrained {
		if err := s.store.Save(ctx, key, model.Serialize()); err != nil {
			s.log.Warn("weight save failed",
				logger.String("key", key),
				logger.Error(err),
			)
		}
	}

	s.metrics.RecordLatency("forecast", time.Since(started).Seconds())

	s.log.Info("forecast ready",
		logger.String("key", key),
		logger.Int("tickers", len(tickers)),
		logger.Float64("llh", llh),
		logger.Float64("ir", ir),
		logger.Bool("retrained", retrained),
	)

	return &ForecastResult{
		Forecast:  forecast,
		Weights:   weights,
		LLH:       llh,
		IR:        ir,
		ModelKey:  key,
		Retrained: retrained,
	}, nil
}

// InvalidateModel drops persisted weights for a universe and configuration,
// forcing the next forecast to retrain.
func (s *Forecaster) InvalidateModel(ctx context.Context, req ForecastRequest) (string, error) {
	tickers, err := normalizeTickers(req.Tickers)
	if err != nil {
		return "", err
	}

	phen, err := resolvePhenotype(req.Phenotype)
	if err != nil {
		return "", err
	}

	key := modelKey(tickers, req.Date, phen)

	if err := s.store.Delete(ctx, key); err != nil {
		return "", fmt.Errorf("invalidate model: %w", err)
	}

	return key, nil
}

func normalizeTickers(tickers []string) ([]string, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers given")
	}

	out := make([]string, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))

	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			return nil, fmt.Errorf("blank ticker in request")
		}
		if seen[t] {
			return nil, fmt.Errorf("duplicate ticker %s", t)
		}

		seen[t] = true
		out = append(out, t)
	}

	sort.Strings(out)

	return out, nil
}

func resolvePhenotype(p *models.Phenotype) (models.Phenotype, error) {
	var phen models.Phenotype

	if p != nil {
		phen = *p
	}

	if err := phen.ApplyDefaults(); err != nil {
		return phen, err
	}

	if err := phen.Validate(); err != nil {
		return phen, err
	}

	return phen, nil
}

// modelKey identifies persisted weights by universe, end date and
// hyperparameters.
func modelKey(tickers []string, date time.Time, phen models.Phenotype) string {
	sum := sha256.Sum256([]byte(strings.Join(tickers, ",")))

	return fmt.Sprintf("model:%s:%s:%s",
		hex.EncodeToString(sum[:8]),
		date.Format(time.DateOnly),
		phen.Hash(),
	)
}
