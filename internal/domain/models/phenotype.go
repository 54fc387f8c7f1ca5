package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Phenotype is the nested hyperparameter configuration of a model candidate.
// It is treated as immutable once handed to a model: callers must not mutate
// a phenotype that is already owned by a Model instance.
type Phenotype struct {
	Data      DataParams      `json:"data" yaml:"data"`
	Model     ModelParams     `json:"model" yaml:"model"`
	Optimizer OptimizerParams `json:"optimizer" yaml:"optimizer"`
	Scheduler SchedulerParams `json:"scheduler" yaml:"scheduler"`
	Utility   UtilityParams   `json:"utility" yaml:"utility"`
}

// DataParams controls dataset construction. Features selects the predictive
// inputs derived from the history window; nil means the full default set,
// while an explicit empty list disables every predictive feature.
type DataParams struct {
	HistoryDays  int      `json:"history_days" yaml:"history_days" default:"252" validate:"gt=0"`
	BatchSize    int      `json:"batch_size" yaml:"batch_size" default:"100" validate:"gt=0"`
	ForecastDays int      `json:"forecast_days" yaml:"forecast_days" default:"21" validate:"gt=0"`
	Features     []string `json:"features,omitempty" yaml:"features,omitempty"`
}

// ModelParams selects and sizes the architecture.
type ModelParams struct {
	Type   string             `json:"type" yaml:"type" default:"lognorm" validate:"required"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// OptimizerParams configures the AdamW update rule.
type OptimizerParams struct {
	Beta1       float64 `json:"beta1" yaml:"beta1" default:"0.9" validate:"gt=0,lt=1"`
	Beta2       float64 `json:"beta2" yaml:"beta2" default:"0.999" validate:"gt=0,lt=1"`
	Eps         float64 `json:"eps" yaml:"eps" default:"0.00000001" validate:"gt=0"`
	WeightDecay float64 `json:"weight_decay" yaml:"weight_decay" default:"0.01" validate:"gte=0"`
}

// SchedulerParams configures the one-cycle learning rate schedule.
// Epochs may be fractional: the step count is derived from it.
type SchedulerParams struct {
	Epochs         float64 `json:"epochs" yaml:"epochs" default:"1" validate:"gt=0"`
	MaxLR          float64 `json:"max_lr" yaml:"max_lr" default:"0.01" validate:"gt=0"`
	PctStart       float64 `json:"pct_start" yaml:"pct_start" default:"0.3" validate:"gt=0,lt=1"`
	DivFactor      float64 `json:"div_factor" yaml:"div_factor" default:"25" validate:"gt=1"`
	FinalDivFactor float64 `json:"final_div_factor" yaml:"final_div_factor" default:"10000" validate:"gt=1"`
}

// UtilityParams parameterizes the portfolio utility function.
type UtilityParams struct {
	RiskAversion   float64 `json:"risk_aversion" yaml:"risk_aversion" default:"1" validate:"gte=0"`
	ErrorTolerance float64 `json:"error_tolerance" yaml:"error_tolerance" default:"0" validate:"gte=0"`
}

// NewPhenotype returns a phenotype populated with default hyperparameters.
func NewPhenotype() (Phenotype, error) {
	var p Phenotype
	if err := defaults.Set(&p); err != nil {
		return p, fmt.Errorf("phenotype defaults: %w", err)
	}
	return p, nil
}

// ApplyDefaults fills zero-valued fields with defaults.
func (p *Phenotype) ApplyDefaults() error {
	if err := defaults.Set(p); err != nil {
		return fmt.Errorf("phenotype defaults: %w", err)
	}
	return nil
}

// Validate checks structural validity of the hyperparameters.
func (p *Phenotype) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("phenotype: %w", err)
	}
	return nil
}

// Hash returns a stable digest of the phenotype, used as part of
// persisted-weight keys.
func (p *Phenotype) Hash() string {
	b, err := json.Marshal(p)
	if err != nil {
		// Phenotype marshals from plain structs; this cannot fail at runtime.
		panic(fmt.Sprintf("marshal phenotype: %v", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
