package dl

import "fmt"

// evalBatch scores a batch against the module's predictive distribution.
// Labels are simple returns; the distribution models gross returns, so
// labels are shifted by one before the density is evaluated. The returned
// mean is shifted back to simple-return units, the variance is unchanged,
// and the loss is the summed negative log likelihood.
func evalBatch(m Module, batch Batch) (loss float64, mean, variance []float64, err error) {
	labels, ok := batch[LabelKey]
	if !ok {
		return 0, nil, nil, fmt.Errorf("dl: batch has no %s field", LabelKey)
	}

	dist, err := m.Dist(batch)
	if err != nil {
		return 0, nil, nil, err
	}

	gross := make([]float64, len(labels))
	for i, v := range labels {
		gross[i] = v + 1
	}

	for _, lp := range dist.LogProb(gross) {
		loss -= lp
	}

	mean = dist.Mean()
	for i := range mean {
		mean[i]--
	}

	return loss, mean, dist.Variance(), nil
}
