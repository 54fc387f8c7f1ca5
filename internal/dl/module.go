package dl

import (
	"fmt"
	"sync"
)

// LabelKey is the batch field holding realized forward returns. Every
// remaining field is a predictive feature the module is free to consume.
const LabelKey = "Label"

// Device identifies where module arithmetic runs. The built-in modules are
// pure Go and treat placement as a hint, but the interface keeps explicit
// placement points in the lifecycle so accelerated implementations can move
// their buffers at the right moments.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// Batch maps feature names to per-example values. All slices in a batch have
// equal length, one entry per example.
type Batch map[string][]float64

// Distribution is the per-example predictive distribution a module emits for
// a batch. All methods return one value per example.
type Distribution interface {
	// Mean returns the expectation of the modeled quantity.
	Mean() []float64
	// Variance returns the variance of the modeled quantity.
	Variance() []float64
	// LogProb evaluates the log density at the given points.
	LogProb(values []float64) []float64
}

// Module is a trainable model over batches. Parameters are exposed as a
// single flat vector so optimizers and the weight store stay agnostic of the
// architecture.
type Module interface {
	// Dist runs a forward pass and returns the predictive distribution.
	Dist(batch Batch) (Distribution, error)

	// Parameters returns the module's parameter vector. The slice aliases
	// internal state; optimizers mutate it in place.
	Parameters() []float64

	// SetParameters overwrites the parameter vector. The length must match
	// Parameters exactly.
	SetParameters(params []float64) error

	// Gradient runs a forward and backward pass over the batch, writes the
	// gradient of the summed negative log likelihood into grad and returns
	// the loss value. grad must have the same length as Parameters.
	Gradient(grad []float64, batch Batch) (float64, error)

	// To moves the module to the given device.
	To(device Device)
}

// Builder constructs an untrained module for the given feature set.
type Builder func(historyDays int, features []string, params map[string]float64) (Module, error)

var (
	buildersMu sync.RWMutex
	builders   = map[string]Builder{}
)

// Register makes a module architecture available under the given name.
// Registering the same name twice panics.
func Register(name string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()

	if _, ok := builders[name]; ok {
		panic("dl: duplicate module registration: " + name)
	}

	builders[name] = b
}

// NewModule builds an untrained module of the named architecture.
func NewModule(name string, historyDays int, features []string, params map[string]float64) (Module, error) {
	buildersMu.RLock()
	b, ok := builders[name]
	buildersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("dl: unknown module type %q", name)
	}

	return b(historyDays, features, params)
}
