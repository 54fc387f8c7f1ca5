package dl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"GrowthOpt/internal/domain/models"
	"GrowthOpt/internal/domain/repository"
	"GrowthOpt/pkg/logger"
)

const (
	// llhDrawDown is the tolerated regression of the running likelihood
	// below its first stable value before training is declared failed.
	llhDrawDown = 1.0

	// maxParams caps the parameter count of a single module.
	maxParams = 2 * (1 << 10) * (1 << 10)

	// bytesPerParam is the per-parameter footprint used for the batch
	// memory estimate.
	bytesPerParam = 4

	// maxBatchGiB caps the estimated activation memory of one batch.
	maxBatchGiB = 197

	// dayInSeconds is the wall-clock budget for one full training run.
	dayInSeconds = 24 * 60 * 60
)

// PortfolioOptimizer scores forecasts by turning them into portfolio weights
// and realized return. mean, variance and labels are per-ticker values over
// one forecast horizon.
type PortfolioOptimizer interface {
	Portfolio(ctx context.Context, mean, variance, labels []float64, tickers []string, end time.Time, phen models.Phenotype) (float64, error)
}

// Factory builds models over shared infrastructure: the loader source, the
// portfolio optimizer used for scoring, metrics and logging.
type Factory struct {
	loaders       LoaderFactory
	opt           PortfolioOptimizer
	metrics       repository.Metrics
	log           *logger.Logger
	device        Device
	progressEvery int
}

func NewFactory(loaders LoaderFactory, opt PortfolioOptimizer, metrics repository.Metrics, log *logger.Logger, device Device, progressEvery int) *Factory {
	return &Factory{
		loaders:       loaders,
		opt:           opt,
		metrics:       metrics,
		log:           log.With("model"),
		device:        device,
		progressEvery: progressEvery,
	}
}

// Model binds one hyperparameter configuration to one ticker universe and
// end date. A nil blob means untrained: the module is created and trained
// lazily on first use. Models are not safe for concurrent use.
type Model struct {
	factory   *Factory
	tickers   []string
	end       time.Time
	phenotype models.Phenotype
	blob      []byte

	module Module
	scored bool
	llh    float64
	ir     float64

	now func() time.Time
}

// Model builds a model for the given universe and end date. blob may be nil
// for an untrained model or hold previously serialized parameters.
func (f *Factory) Model(tickers []string, end time.Time, phen models.Phenotype, blob []byte) *Model {
	return &Model{
		factory:   f,
		tickers:   tickers,
		end:       end,
		phenotype: phen,
		blob:      blob,
		now:       time.Now,
	}
}

// Serialize returns the module parameters as a blob. A model restored from a
// blob and never retrained returns the original bytes; a model that was
// never materialized returns an empty slice.
func (m *Model) Serialize() []byte {
	if m.module == nil {
		if m.blob != nil {
			return m.blob
		}

		return []byte{}
	}

	m.module.To(DeviceCPU)

	return marshalParams(m.module.Parameters())
}

// QualityMetrics returns the out-of-sample log likelihood and the
// information ratio of the model. The evaluation runs once; repeated calls
// return memoized values.
func (m *Model) QualityMetrics(ctx context.Context) (llh, ir float64, err error) {
	if !m.scored {
		m.llh, m.ir, err = m.evalLLH(ctx)
		if err != nil {
			return 0, 0, err
		}

		m.scored = true
	}

	return m.llh, m.ir, nil
}

// Forecast produces annualized return means and deviations for every ticker
// from the most recent history window.
func (m *Model) Forecast(ctx context.Context) (*models.Forecast, error) {
	loader, err := m.factory.loaders.NewLoader(ctx, m.tickers, m.end, m.phenotype.Data, Forecast)
	if err != nil {
		return nil, &TooLongHistoryError{HistoryDays: m.phenotype.Data.HistoryDays, Cause: err}
	}

	module, err := m.PrepareModule(ctx, loader)
	if err != nil {
		return nil, err
	}

	module.To(m.factory.device)

	mean := make([]float64, 0, len(m.tickers))
	std := make([]float64, 0, len(m.tickers))

	scale := float64(models.YearInTradingDays) / float64(m.phenotype.Data.ForecastDays)

	for i := 0; i < loader.NumBatches(); i++ {
		batch, err := loader.Batch(i)
		if err != nil {
			return nil, err
		}

		dist, err := module.Dist(batch)
		if err != nil {
			return nil, err
		}

		variance := dist.Variance()
		for j, v := range dist.Mean() {
			mean = append(mean, (v-1)*scale)
			std = append(std, math.Sqrt(variance[j])*math.Sqrt(scale))
		}
	}

	if len(mean) != len(m.tickers) {
		return nil, fmt.Errorf("dl: forecast produced %d values for %d tickers", len(mean), len(m.tickers))
	}

	return &models.Forecast{
		Tickers:        m.tickers,
		Date:           m.end,
		HistoryDays:    m.phenotype.Data.HistoryDays,
		Mean:           mean,
		Std:            std,
		RiskAversion:   m.phenotype.Utility.RiskAversion,
		ErrorTolerance: m.phenotype.Utility.ErrorTolerance,
	}, nil
}

// PrepareModule returns the live module, restoring it from the blob when one
// is present and training from scratch otherwise. The loader is only needed
// to size the architecture on restore.
func (m *Model) PrepareModule(ctx context.Context, loader Loader) (Module, error) {
	if m.module != nil {
		return m.module, nil
	}

	if len(m.blob) > 0 {
		module, err := m.makeUntrained(loader)
		if err != nil {
			return nil, err
		}

		params, err := unmarshalParams(m.blob)
		if err != nil {
			return nil, err
		}

		if err := module.SetParameters(params); err != nil {
			return nil, err
		}

		m.module = module

		return m.module, nil
	}

	module, err := m.trainModule(ctx)
	if err != nil {
		return nil, err
	}

	m.module = module

	return m.module, nil
}

// makeUntrained builds a fresh module for the loader's feature set and
// enforces the parameter count ceiling.
func (m *Model) makeUntrained(loader Loader) (Module, error) {
	names := loader.Features()
	features := names[:len(names)-1] // label excluded

	module, err := NewModule(m.phenotype.Model.Type, loader.HistoryDays(), features, m.phenotype.Model.Params)
	if err != nil {
		return nil, err
	}

	if count := len(module.Parameters()); count > maxParams {
		return nil, &TooLargeModelError{Reason: fmt.Sprintf("%d parameters over the %d cap", count, maxParams)}
	}

	return module, nil
}

func (m *Model) evalLLH(ctx context.Context) (llh, ir float64, err error) {
	loader, err := m.factory.loaders.NewLoader(ctx, m.tickers, m.end, m.phenotype.Data, Test)
	if err != nil {
		return 0, 0, &TooLongHistoryError{HistoryDays: m.phenotype.Data.HistoryDays, Cause: err}
	}

	if loader.DatasetLen()%len(m.tickers) != 0 {
		return 0, 0, &TooLongHistoryError{
			HistoryDays: m.phenotype.Data.HistoryDays,
			Cause:       errors.New("test dataset is not aligned to the ticker universe"),
		}
	}

	module, err := m.PrepareModule(ctx, loader)
	if err != nil {
		return 0, 0, err
	}

	module.To(m.factory.device)

	var (
		llhSum float64
		weight float64

		means     []float64
		variances []float64
		labels    []float64
	)

	for i := 0; i < loader.NumBatches(); i++ {
		batch, err := loader.Batch(i)
		if err != nil {
			return 0, 0, err
		}

		loss, mean, variance, err := evalBatch(module, batch)
		if err != nil {
			return 0, 0, err
		}

		llhSum -= loss
		weight += float64(len(mean))

		means = append(means, mean...)
		variances = append(variances, variance...)
		labels = append(labels, batch[LabelKey]...)
	}

	llh = llhSum/weight + m.llhAdj()
	m.factory.metrics.RecordEvalLLH(m.phenotype.Model.Type, llh)

	ir, err = m.factory.opt.Portfolio(ctx, means, variances, labels, m.tickers, m.end, m.phenotype)
	if err != nil {
		return 0, 0, err
	}

	m.factory.log.Info("model scored",
		logger.Float64("llh", llh),
		logger.Float64("ir", ir),
		logger.Int("tickers", len(m.tickers)),
	)

	return llh, ir, nil
}

// llhAdj compensates the likelihood for the forecast horizon so scores of
// models with different horizons stay comparable.
func (m *Model) llhAdj() float64 {
	return math.Log(float64(m.phenotype.Data.ForecastDays)) / 2
}

func (m *Model) trainModule(ctx context.Context) (Module, error) {
	loader, err := m.factory.loaders.NewLoader(ctx, m.tickers, m.end, m.phenotype.Data, Train)
	if err != nil {
		return nil, &TooLongHistoryError{HistoryDays: m.phenotype.Data.HistoryDays, Cause: err}
	}

	if len(loader.Features()) == 1 {
		return nil, &DegeneratedModelError{Reason: "no predictive features"}
	}

	module, err := m.makeUntrained(loader)
	if err != nil {
		return nil, err
	}

	module.To(m.factory.device)

	params := module.Parameters()

	batchGiB := float64(len(params)) * bytesPerParam * float64(m.phenotype.Data.BatchSize) / (1 << 30)
	if batchGiB > maxBatchGiB {
		return nil, &TooLargeModelError{Reason: fmt.Sprintf("batch needs %.1f GiB over the %d GiB cap", batchGiB, maxBatchGiB)}
	}

	stepsPerEpoch := loader.NumBatches()
	totalSteps := 1 + int(float64(stepsPerEpoch)*m.phenotype.Scheduler.Epochs)

	opt := newAdamW(m.phenotype.Optimizer, len(params))
	sched := newOneCycle(m.phenotype.Scheduler, totalSteps)

	llhSum := newRing(stepsPerEpoch)
	llhWeight := newRing(stepsPerEpoch)
	llhAdj := m.llhAdj()

	progressEvery := m.factory.progressEvery
	if progressEvery <= 0 {
		progressEvery = stepsPerEpoch
	}

	var (
		llhMin    float64
		llhMinSet bool
	)

	grad := make([]float64, len(params))
	started := m.now()

	for step := 0; step < totalSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training interrupted: %w", err)
		}

		batch, err := loader.Batch(step % stepsPerEpoch)
		if err != nil {
			return nil, err
		}

		for i := range grad {
			grad[i] = 0
		}

		loss, err := module.Gradient(grad, batch)
		if err != nil {
			return nil, err
		}

		llhSum.push(-loss)
		llhWeight.push(float64(len(batch[LabelKey])))

		opt.Step(params, grad, sched.LR(step))

		llh := llhSum.Sum()/llhWeight.Sum() + llhAdj

		m.factory.metrics.RecordTrainStep(m.phenotype.Model.Type)
		m.factory.metrics.RecordRunningLLH(m.phenotype.Model.Type, llh)

		if !llhMinSet {
			llhMin = llh - llhDrawDown
			llhMinSet = true
		}

		elapsed := m.now().Sub(started).Seconds()
		if elapsed/float64(step+1)*float64(totalSteps) > dayInSeconds {
			m.factory.metrics.RecordTrainAbort("wall_clock")

			return nil, &DegeneratedModelError{Reason: fmt.Sprintf("full schedule would run over %d seconds", dayInSeconds)}
		}

		if !(llh > llhMin) {
			m.factory.metrics.RecordTrainAbort("llh_drawdown")

			return nil, &GradientsError{LLHMin: llhMin}
		}

		if (step+1)%progressEvery == 0 {
			m.factory.log.Debug("training progress",
				logger.Int("step", step+1),
				logger.Int("total_steps", totalSteps),
				logger.Float64("llh", llh),
			)
		}
	}

	m.factory.metrics.RecordLatency("train", m.now().Sub(started).Seconds())

	return module, nil
}
