package models

import "time"

// YearInTradingDays scales per-horizon statistics to annualized units.
const YearInTradingDays = 252

// Forecast is the immutable result of a model forecast: annualized return
// mean and standard deviation per ticker, aligned to Tickers order. Created
// once per forecast call and read-only thereafter.
type Forecast struct {
	Tickers        []string  `json:"tickers"`
	Date           time.Time `json:"date"`
	HistoryDays    int       `json:"history_days"`
	Mean           []float64 `json:"mean"`
	Std            []float64 `json:"std"`
	RiskAversion   float64   `json:"risk_aversion"`
	ErrorTolerance float64   `json:"error_tolerance"`
}

// MeanByTicker returns the annualized mean for a ticker, false when the
// ticker is not part of the forecast universe.
func (f *Forecast) MeanByTicker(ticker string) (float64, bool) {
	for i, t := range f.Tickers {
		if t == ticker {
			return f.Mean[i], true
		}
	}
	return 0, false
}
