package model

import "math"

// MinSamplesForConvergence is the minimum per-dimension sample count before
// convergence is even considered.
const MinSamplesForConvergence = 5000

// DefaultConvergenceThreshold is the default fraction of each moment's
// standard error a change must fall under to count as converged.
const DefaultConvergenceThreshold = 0.01

// ConvergenceTracker watches a dimension's moments across successive
// checkpoints and reports standard-error-based convergence
type ConvergenceTracker struct {
	threshold float64

	lastMean, lastVariance, lastSkew, lastKurt float64
	haveLast                                   bool
}

// NewConvergenceTracker builds a tracker comparing successive moment
// snapshots against threshold times each moment's standard error.
func NewConvergenceTracker(threshold float64) *ConvergenceTracker {
	if threshold <= 0 {
		threshold = DefaultConvergenceThreshold
	}

	return &ConvergenceTracker{threshold: threshold}
}

// Observe checks the current moment values against the last observed
// snapshot (if n >= MinSamplesForConvergence) and returns whether all four
// moments have converged. The snapshot is always updated for next time.
func (t *ConvergenceTracker) Observe(n uint64, mean, variance, skew, kurt float64) bool {
	if n < MinSamplesForConvergence {
		t.lastMean, t.lastVariance, t.lastSkew, t.lastKurt = mean, variance, skew, kurt
		t.haveLast = true

		return false
	}

	if !t.haveLast {
		t.lastMean, t.lastVariance, t.lastSkew, t.lastKurt = mean, variance, skew, kurt
		t.haveLast = true

		return false
	}

	nf := float64(n)
	stdev := math.Sqrt(variance)

	seMean := stdev / math.Sqrt(nf)
	seVariance := variance * math.Sqrt(2/nf)
	seSkew := math.Sqrt(6 / nf)
	seKurt := math.Sqrt(24 / nf)

	converged := withinThreshold(mean-t.lastMean, seMean, t.threshold) &&
		withinThreshold(variance-t.lastVariance, seVariance, t.threshold) &&
		withinThreshold(skew-t.lastSkew, seSkew, t.threshold) &&
		withinThreshold(kurt-t.lastKurt, seKurt, t.threshold)

	t.lastMean, t.lastVariance, t.lastSkew, t.lastKurt = mean, variance, skew, kurt

	return converged
}

func withinThreshold(delta, standardError, threshold float64) bool {
	if standardError <= 0 {
		return delta == 0
	}

	return math.Abs(delta) < threshold*standardError
}
