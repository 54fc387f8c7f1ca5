// Package port turns return forecasts into long-only portfolio weights by
// maximizing a mean-variance utility with an error-tolerance penalty.
package port

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"GrowthOpt/internal/domain/models"
	"GrowthOpt/internal/domain/repository"
	"GrowthOpt/pkg/logger"
)

// CorrelationSource provides a shrunk correlation matrix for a ticker
// universe over a forecast horizon.
type CorrelationSource interface {
	CorrelationMatrix(ctx context.Context, tickers []string, end time.Time, historyDays, forecastDays int) (*mat.SymDense, float64, float64, error)
}

// Optimizer solves for non-negative weights summing to one that maximize
//
//	U(w) = w'mean - ra/2 * w'Sigma w - et * sqrt(w'Sigma w)
//
// over annualized inputs. Reports publication is optional; a nil Reports
// keeps diagnostics local.
type Optimizer struct {
	cov     CorrelationSource
	reports repository.Reports
	metrics repository.Metrics
	log     *logger.Logger
}

func NewOptimizer(cov CorrelationSource, reports repository.Reports, metrics repository.Metrics, log *logger.Logger) *Optimizer {
	return &Optimizer{
		cov:     cov,
		reports: reports,
		metrics: metrics,
		log:     log.With("port"),
	}
}

// Weights computes optimal portfolio weights from per-horizon forecast means
// and variances, annualizing them internally. The returned covariance matrix
// is in annualized units.
func (o *Optimizer) Weights(ctx context.Context, mean, variance []float64, tickers []string, end time.Time, phen models.Phenotype) ([]float64, *mat.SymDense, error) {
	scale := float64(models.YearInTradingDays) / float64(phen.Data.ForecastDays)

	return o.weightsAnnual(ctx, scaled(mean, scale), scaled(variance, scale), tickers, end, phen)
}

// WeightsForForecast computes optimal weights from an already annualized
// forecast.
func (o *Optimizer) WeightsForForecast(ctx context.Context, f *models.Forecast, phen models.Phenotype) ([]float64, *mat.SymDense, error) {
	variance := make([]float64, len(f.Std))
	for i, s := range f.Std {
		variance[i] = s * s
	}

	return o.weightsAnnual(ctx, f.Mean, variance, f.Tickers, f.Date, phen)
}

// Portfolio scores a forecast against realized per-horizon returns. It
// solves for weights, computes the realized portfolio return and publishes a
// diagnostic report. The returned value is the realized annualized return of
// the optimal portfolio.
func (o *Optimizer) Portfolio(ctx context.Context, mean, variance, labels []float64, tickers []string, end time.Time, phen models.Phenotype) (float64, error) {
	scale := float64(models.YearInTradingDays) / float64(phen.Data.ForecastDays)

	meanA := scaled(mean, scale)
	varA := scaled(variance, scale)
	labelsA := scaled(labels, scale)

	weights, sigma, err := o.weightsAnnual(ctx, meanA, varA, tickers, end, phen)
	if err != nil {
		return 0, err
	}

	var ret, plan, benchmark float64
	for i, w := range weights {
		ret += w * labelsA[i]
		plan += w * meanA[i]
		benchmark += labelsA[i]
	}
	benchmark /= float64(len(labelsA))

	std := math.Sqrt(quadForm(sigma, weights))

	var dd float64
	if plan > 0 {
		dd = std * std / plan
	}

	positions, maxWeight := concentration(weights)

	report := &models.PortfolioReport{
		Tickers:   tickers,
		Date:      end,
		Ret:       ret,
		Mean:      benchmark,
		Plan:      plan,
		Std:       std,
		DD:        dd,
		Positions: positions,
		MaxWeight: maxWeight,
	}

	o.metrics.RecordPortfolio(universeKey(tickers), positions, maxWeight)

	o.log.Info("portfolio evaluated",
		logger.Float64("ret", ret),
		logger.Float64("benchmark", benchmark),
		logger.Float64("plan", plan),
		logger.Float64("std", std),
		logger.Int("positions", positions),
		logger.Float64("max_weight", maxWeight),
	)

	if o.reports != nil {
		if err := o.reports.Publish(ctx, report); err != nil {
			o.log.Warn("report publish failed", logger.Error(err))
		}
	}

	return ret, nil
}

func (o *Optimizer) weightsAnnual(ctx context.Context, mean, variance []float64, tickers []string, end time.Time, phen models.Phenotype) ([]float64, *mat.SymDense, error) {
	n := len(tickers)
	if len(mean) != n || len(variance) != n {
		return nil, nil, fmt.Errorf("port: %d/%d forecast values for %d tickers", len(mean), len(variance), n)
	}

	if n == 1 {
		return []float64{1}, covariance(mat.NewSymDense(1, []float64{1}), variance), nil
	}

	corr, _, _, err := o.cov.CorrelationMatrix(ctx, tickers, end, phen.Data.HistoryDays, phen.Data.ForecastDays)
	if err != nil {
		return nil, nil, fmt.Errorf("correlation matrix: %w", err)
	}

	sigma := covariance(corr, variance)

	weights, err := solve(mean, sigma, phen.Utility)
	if err != nil {
		return nil, nil, err
	}

	return weights, sigma, nil
}

// covariance scales a correlation matrix by per-ticker deviations.
func covariance(corr *mat.SymDense, variance []float64) *mat.SymDense {
	n := len(variance)

	std := make([]float64, n)
	for i, v := range variance {
		std[i] = math.Sqrt(v)
	}

	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, std[i]*corr.At(i, j)*std[j])
		}
	}

	return sigma
}

// solve maximizes the utility over the simplex. Candidate points are
// projected onto the non-negative orthant and renormalized inside the
// objective, so any unconstrained minimizer applies.
func solve(mean []float64, sigma *mat.SymDense, utility models.UtilityParams) ([]float64, error) {
	n := len(mean)

	objective := func(x []float64) float64 {
		w, ok := project(x)
		if !ok {
			return math.Inf(1)
		}

		var ret float64
		for i, v := range w {
			ret += v * mean[i]
		}

		variance := quadForm(sigma, w)

		return -(ret - utility.RiskAversion/2*variance - utility.ErrorTolerance*math.Sqrt(variance))
	}

	problem := optimize.Problem{Func: objective}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1
	}

	result, err := optimize.Minimize(problem, initial, nil, &optimize.NelderMead{})
	if err != nil && result == nil {
		return nil, fmt.Errorf("port: optimization failed: %w", err)
	}

	switch result.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold:
	default:
		if err != nil {
			return nil, fmt.Errorf("port: optimization did not converge: %w", err)
		}
		return nil, fmt.Errorf("port: optimization did not converge: %v", result.Status)
	}

	weights, ok := project(result.X)
	if !ok {
		return nil, fmt.Errorf("port: degenerate solution with no positive weight")
	}

	return weights, nil
}

// project clips negative components and renormalizes to the unit simplex.
func project(x []float64) ([]float64, bool) {
	w := make([]float64, len(x))

	var sum float64
	for i, v := range x {
		if v > 0 {
			w[i] = v
			sum += v
		}
	}

	if sum < 1e-12 {
		return nil, false
	}

	for i := range w {
		w[i] /= sum
	}

	return w, true
}

func quadForm(sigma *mat.SymDense, w []float64) float64 {
	var total float64
	for i, wi := range w {
		for j, wj := range w {
			total += wi * sigma.At(i, j) * wj
		}
	}

	return total
}

func concentration(weights []float64) (positions int, maxWeight float64) {
	for _, w := range weights {
		if w > 1e-6 {
			positions++
		}
		if w > maxWeight {
			maxWeight = w
		}
	}

	return positions, maxWeight
}

func scaled(values []float64, scale float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * scale
	}

	return out
}

func universeKey(tickers []string) string {
	if len(tickers) <= 3 {
		return strings.Join(tickers, ",")
	}

	return fmt.Sprintf("%s+%d", tickers[0], len(tickers)-1)
}
