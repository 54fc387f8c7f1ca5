package models

import "time"

// PortfolioReport is the diagnostic record emitted for every optimized
// portfolio. Ret is the realized annualized return of the optimal weights;
// the rest flags model inadequacy (large Plan/Std) or weak diversification
// (small Positions, large MaxWeight).
type PortfolioReport struct {
	Tickers   []string  `json:"tickers"`
	Date      time.Time `json:"date"`
	Ret       float64   `json:"ret"`        // realized return of the optimal portfolio
	Mean      float64   `json:"mean"`       // equal-weight benchmark return
	Plan      float64   `json:"plan"`       // expected return of the optimal portfolio
	Std       float64   `json:"std"`        // expected standard deviation
	DD        float64   `json:"dd"`         // drawdown proxy: std^2 / plan
	Positions int       `json:"positions"`  // count of non-zero weights
	MaxWeight float64   `json:"max_weight"` // largest single weight
}

// Allocation couples the optimized weights with the forecast that produced
// them.
type Allocation struct {
	Forecast *Forecast `json:"forecast"`
	Weights  []float64 `json:"weights"`
}
