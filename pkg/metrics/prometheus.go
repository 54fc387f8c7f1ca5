package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainSteps   *prometheus.CounterVec
	trainAborts  *prometheus.CounterVec
	runningLLH   *prometheus.GaugeVec
	evalLLH      *prometheus.GaugeVec
	positions    *prometheus.GaugeVec
	maxWeight    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		trainSteps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growthopt_train_steps_total",
				Help: "Total number of optimization steps executed",
			},
			[]string{"model"},
		),
		trainAborts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growthopt_train_aborts_total",
				Help: "Total number of aborted training runs by reason",
			},
			[]string{"reason"},
		),
		runningLLH: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "growthopt_train_running_llh",
				Help: "Sliding-window log likelihood during training",
			},
			[]string{"model"},
		),
		evalLLH: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "growthopt_eval_llh",
				Help: "Evaluation log likelihood of the last run",
			},
			[]string{"model"},
		),
		positions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "growthopt_portfolio_positions",
				Help: "Number of non-zero positions in the optimized portfolio",
			},
			[]string{"universe"},
		),
		maxWeight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "growthopt_portfolio_max_weight",
				Help: "Largest single-asset weight in the optimized portfolio",
			},
			[]string{"universe"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "growthopt_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTrainStep records one executed optimization step.
func (r *Recorder) RecordTrainStep(model string) {
	r.trainSteps.WithLabelValues(model).Inc()
}

// RecordTrainAbort records an aborted training run.
func (r *Recorder) RecordTrainAbort(reason string) {
	r.trainAborts.WithLabelValues(reason).Inc()
}

// RecordRunningLLH records the sliding-window log likelihood.
func (r *Recorder) RecordRunningLLH(model string, llh float64) {
	r.runningLLH.WithLabelValues(model).Set(llh)
}

// RecordEvalLLH records the evaluation log likelihood.
func (r *Recorder) RecordEvalLLH(model string, llh float64) {
	r.evalLLH.WithLabelValues(model).Set(llh)
}

// RecordPortfolio records diagnostic stats of an optimized portfolio.
func (r *Recorder) RecordPortfolio(universe string, positions int, maxWeight float64) {
	r.positions.WithLabelValues(universe).Set(float64(positions))
	r.maxWeight.WithLabelValues(universe).Set(maxWeight)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
