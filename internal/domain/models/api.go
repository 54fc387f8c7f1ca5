package models

// ForecastHTTPRequest is the body of POST /api/v1/forecast. Date is the last
// trading day the model may see, and a missing phenotype means default
// hyperparameters.
type ForecastHTTPRequest struct {
	Tickers   []string   `json:"tickers" validate:"required,min=1"`
	Date      string     `json:"date" validate:"required,datetime=2006-01-02"`
	Phenotype *Phenotype `json:"phenotype,omitempty"`
}

// ForecastHTTPResponse carries the annualized forecast and the optimal
// weights, all aligned to Tickers order.
type ForecastHTTPResponse struct {
	Tickers   []string  `json:"tickers"`
	Date      string    `json:"date"`
	Mean      []float64 `json:"mean"`
	Std       []float64 `json:"std"`
	Weights   []float64 `json:"weights"`
	LLH       float64   `json:"llh"`
	IR        float64   `json:"ir"`
	ModelKey  string    `json:"model_key"`
	Retrained bool      `json:"retrained"`
}

// SeqTestHTTPRequest is the body of POST /api/v1/seqtest.
type SeqTestHTTPRequest struct {
	Sample []float64 `json:"sample" validate:"required,min=1"`
	PValue float64   `json:"p_value" default:"0.05" validate:"gt=0,lt=1"`
}
