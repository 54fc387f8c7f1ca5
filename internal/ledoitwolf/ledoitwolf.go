// Package ledoitwolf estimates a well-conditioned correlation matrix from a
// short, noisy return history by shrinking the sample correlation toward the
// constant-correlation target (Ledoit & Wolf, "Honey, I Shrunk the Sample
// Covariance Matrix").
package ledoitwolf

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"GrowthOpt/internal/domain/repository"
	"GrowthOpt/pkg/logger"
)

// Estimator fetches return history and produces shrunk correlation matrices.
// It is pure with respect to its inputs: nothing is cached across calls.
type Estimator struct {
	quotes repository.Quotes
	log    *logger.Logger
}

// NewEstimator creates a correlation estimator over a quote repository.
func NewEstimator(quotes repository.Quotes, log *logger.Logger) *Estimator {
	return &Estimator{quotes: quotes, log: log.With("ledoit_wolf")}
}

// CorrelationMatrix returns the shrunk correlation matrix for tickers over
// historyDays of history ending at end, with returns compounded over
// forecastDays horizons so the matrix is consistent with the forecast units.
// Also reports the average off-diagonal correlation and the shrinkage
// intensity used.
func (e *Estimator) CorrelationMatrix(
	ctx context.Context,
	tickers []string,
	end time.Time,
	historyDays int,
	forecastDays int,
) (*mat.SymDense, float64, float64, error) {
	daily, err := e.quotes.Returns(ctx, tickers, end, historyDays)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("return history: %w", err)
	}

	windows := compound(daily, forecastDays)
	rows := len(windows)
	if rows < 2 {
		return nil, 0, 0, fmt.Errorf("history of %d days gives %d windows of %d days, need at least 2",
			historyDays, rows, forecastDays)
	}

	returns := mat.NewDense(rows, len(tickers), nil)
	for i, w := range windows {
		returns.SetRow(i, w)
	}

	sigma, averageCor, shrink := Shrink(returns)

	e.log.Debug("correlation estimated",
		logger.Int("tickers", len(tickers)),
		logger.Int("windows", rows),
		logger.Float64("average_cor", averageCor),
		logger.Float64("shrink", shrink),
	)

	return sigma, averageCor, shrink, nil
}

// compound folds daily returns into non-overlapping horizon returns, working
// backwards from the most recent day so the freshest data is never dropped.
func compound(daily [][]float64, horizon int) [][]float64 {
	if horizon < 1 {
		horizon = 1
	}
	n := 0
	if len(daily) > 0 {
		n = len(daily[0])
	}

	count := len(daily) / horizon
	out := make([][]float64, count)
	for w := 0; w < count; w++ {
		row := make([]float64, n)
		for j := range row {
			row[j] = 1.0
		}
		// windows are aligned to the end of the history
		start := len(daily) - (count-w)*horizon
		for d := start; d < start+horizon; d++ {
			for j := range row {
				row[j] *= 1 + daily[d][j]
			}
		}
		for j := range row {
			row[j] -= 1
		}
		out[w] = row
	}
	return out
}

// Shrink computes the constant-correlation shrinkage estimate on a
// rows x cols matrix of horizon returns (rows in time order, one column per
// ticker). Returns the shrunk correlation matrix, the average off-diagonal
// sample correlation, and the shrinkage intensity in [0, 1].
func Shrink(returns *mat.Dense) (*mat.SymDense, float64, float64) {
	t, n := returns.Dims()

	// Standardize columns so the sample covariance below is a correlation
	// matrix. Population moments (divide by t) mirror the estimator's
	// derivation.
	x := mat.DenseCopyOf(returns)
	for j := 0; j < n; j++ {
		var mean float64
		for i := 0; i < t; i++ {
			mean += x.At(i, j)
		}
		mean /= float64(t)

		var variance float64
		for i := 0; i < t; i++ {
			d := x.At(i, j) - mean
			variance += d * d
		}
		variance /= float64(t)

		std := math.Sqrt(variance)
		if std == 0 {
			std = 1 // constant column: leave centered zeros
		}
		for i := 0; i < t; i++ {
			x.Set(i, j, (x.At(i, j)-mean)/std)
		}
	}

	// Sample correlation S = X'X / t.
	s := mat.NewDense(n, n, nil)
	s.Mul(x.T(), x)
	s.Scale(1/float64(t), s)

	var corSum float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				corSum += s.At(i, j)
			}
		}
	}
	averageCor := 0.0
	if n > 1 {
		averageCor = corSum / float64(n) / float64(n-1)
	}

	// Constant-correlation prior.
	prior := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				prior.Set(i, j, s.At(i, j))
			} else {
				prior.Set(i, j, averageCor)
			}
		}
	}

	// pi-hat: variance of the entries of S.
	y := mat.NewDense(t, n, nil)
	for i := 0; i < t; i++ {
		for j := 0; j < n; j++ {
			v := x.At(i, j)
			y.Set(i, j, v*v)
		}
	}
	phiMat := mat.NewDense(n, n, nil)
	phiMat.Mul(y.T(), y)
	phiMat.Scale(1/float64(t), phiMat)
	var phi float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := phiMat.At(i, j) - s.At(i, j)*s.At(i, j)
			phiMat.Set(i, j, d)
			phi += d
		}
	}

	// rho-hat: covariance between the entries of S and the prior.
	cube := mat.NewDense(t, n, nil)
	for i := 0; i < t; i++ {
		for j := 0; j < n; j++ {
			v := x.At(i, j)
			cube.Set(i, j, v*v*v)
		}
	}
	thetaMat := mat.NewDense(n, n, nil)
	thetaMat.Mul(cube.T(), x)
	thetaMat.Scale(1/float64(t), thetaMat)

	var rho float64
	for i := 0; i < n; i++ {
		rho += phiMat.At(i, i)
		for j := 0; j < n; j++ {
			if i != j {
				rho += averageCor * (thetaMat.At(i, j) - s.At(i, j))
			}
		}
	}

	// gamma-hat: misspecification of the prior.
	var gamma float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := s.At(i, j) - prior.At(i, j)
			gamma += d * d
		}
	}

	shrink := 1.0
	if gamma > 0 {
		kappa := (phi - rho) / gamma
		shrink = math.Max(0, math.Min(1, kappa/float64(t)))
	}

	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		sigma.SetSym(i, i, 1.0)
		for j := i + 1; j < n; j++ {
			v := shrink*prior.At(i, j) + (1-shrink)*s.At(i, j)
			sigma.SetSym(i, j, v)
		}
	}

	return sigma, averageCor, shrink
}
