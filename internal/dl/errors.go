package dl

import (
	"errors"
	"fmt"
)

// ErrModel is the common category for all unrecoverable model failures. The
// caller decides whether to retry with different hyperparameters or discard
// the configuration; no retry happens inside this package.
var ErrModel = errors.New("model error")

// TooLongHistoryError reports that the requested history window cannot be
// satisfied by the available data.
type TooLongHistoryError struct {
	HistoryDays int
	Cause       error
}

func (e *TooLongHistoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("history of %d days cannot be satisfied: %v", e.HistoryDays, e.Cause)
	}
	return fmt.Sprintf("history of %d days cannot be satisfied", e.HistoryDays)
}

func (e *TooLongHistoryError) Unwrap() error { return ErrModel }

// TooLargeModelError reports that the parameter count or the estimated
// memory footprint exceeds the operational ceilings.
type TooLargeModelError struct {
	Reason string
}

func (e *TooLargeModelError) Error() string {
	return "model too large: " + e.Reason
}

func (e *TooLargeModelError) Unwrap() error { return ErrModel }

// DegeneratedModelError reports a configuration with no usable predictive
// signal, or a training run that exceeds the wall-clock budget.
type DegeneratedModelError struct {
	Reason string
}

func (e *DegeneratedModelError) Error() string {
	return "degenerated model: " + e.Reason
}

func (e *DegeneratedModelError) Unwrap() error { return ErrModel }

// GradientsError reports that the training likelihood regressed beyond the
// allowed drawdown from its first stable value. NaN likelihoods fail the
// same comparison and are reported identically.
type GradientsError struct {
	LLHMin float64
}

func (e *GradientsError) Error() string {
	return fmt.Sprintf("log likelihood dropped below initial value %0.5f", e.LLHMin+llhDrawDown)
}

func (e *GradientsError) Unwrap() error { return ErrModel }
