// Package stats implements the streaming per-dimension statistics the
// model extractor consumes: online Welford/Chan moment accumulation and an
// adaptive histogram with peak and gap detection. It adapts the
// pkg/mathutil incremental-statistics helper pattern from a
// per-commit-metric running mean to the full first-four-moments streaming
// accumulator this pipeline's model fitting needs.
package stats

import "math"

// Accumulator holds the streaming first-four central moments, min, and max
// of a single dimension's values, updated via Welford's algorithm. It is
// not internally synchronized; callers serialize Accept calls to the same
// Accumulator (e.g. one lock per dimension) while parallelizing across
// dimensions.
type Accumulator struct {
	n          uint64
	mean       float64
	m2, m3, m4 float64
	min, max   float64
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{min: math.Inf(1), max: math.Inf(-1)}
}

// Count returns the number of values accepted so far.
func (a *Accumulator) Count() uint64 { return a.n }

// Accept folds a new value into the running moments. Update order matters:
// M4 and M3 are computed from the previous M2/M3 before M2 itself is
// updated, per the Welford/Chan recurrence.
func (a *Accumulator) Accept(x float64) {
	n := a.n
	nPrime := n + 1

	delta := x - a.mean
	deltaN := delta / float64(nPrime)
	term := delta * deltaN * float64(n)

	nF := float64(nPrime)

	a.m4 += term*deltaN*deltaN*(nF*nF-3*nF+3) + 6*deltaN*deltaN*a.m2 - 4*deltaN*a.m3
	a.m3 += term*deltaN*(nF-2) - 3*deltaN*a.m2
	a.m2 += term
	a.mean += deltaN
	a.n = nPrime

	if x < a.min {
		a.min = x
	}

	if x > a.max {
		a.max = x
	}
}

// Combine merges another accumulator's state into a, using Chan's
// parallel-combine formulas for M2, M3, and M4. b is left unmodified.
func (a *Accumulator) Combine(b *Accumulator) {
	if b.n == 0 {
		return
	}

	if a.n == 0 {
		*a = *b

		return
	}

	nA, nB := float64(a.n), float64(b.n)
	nAB := nA + nB

	delta := b.mean - a.mean
	delta2 := delta * delta
	delta3 := delta2 * delta
	delta4 := delta2 * delta2

	meanAB := a.mean + delta*nB/nAB

	m2AB := a.m2 + b.m2 + delta2*nA*nB/nAB

	m3AB := a.m3 + b.m3 +
		delta3*nA*nB*(nA-nB)/(nAB*nAB) +
		3*delta*(nA*b.m2-nB*a.m2)/nAB

	m4AB := a.m4 + b.m4 +
		delta4*nA*nB*(nA*nA-nA*nB+nB*nB)/(nAB*nAB*nAB) +
		6*delta2*(nA*nA*b.m2+nB*nB*a.m2)/(nAB*nAB) +
		4*delta*(nA*b.m3-nB*a.m3)/nAB

	a.n = uint64(nAB)
	a.mean = meanAB
	a.m2 = m2AB
	a.m3 = m3AB
	a.m4 = m4AB

	if b.min < a.min {
		a.min = b.min
	}

	if b.max > a.max {
		a.max = b.max
	}
}

// Seeds is the externally supplied moment summary ReconstructFromSeeds
// accepts, e.g. from a precomputed or checkpointed summary.
type Seeds struct {
	Count    uint64
	Min, Max float64
	Mean     float64
	Variance float64
	Skewness float64
	// Kurtosis here is the un-excess fourth moment ratio (M4/n)/variance²,
	// not excess kurtosis.
	Kurtosis float64
}

// ReconstructFromSeeds rebuilds an accumulator's internal moment sums from
// externally computed summary statistics, so a checkpoint or a
// non-streaming precomputation can resume streaming updates seamlessly.
func ReconstructFromSeeds(s Seeds) *Accumulator {
	n := float64(s.Count)
	stdev := math.Sqrt(s.Variance)

	a := &Accumulator{
		n:    s.Count,
		mean: s.Mean,
		min:  s.Min,
		max:  s.Max,
		m2:   s.Variance * n,
		m3:   s.Skewness * stdev * stdev * stdev * n,
		m4:   s.Kurtosis * s.Variance * s.Variance * n,
	}

	return a
}

// Summary is the final statistics computed from an accumulator's state.
type Summary struct {
	Count           uint64
	Min, Max        float64
	Mean            float64
	Variance        float64 // population variance
	StdDev          float64
	Skewness        float64
	ExcessKurtosis  float64
}

// Finalize computes the final statistics from the current moment state.
// Skewness is 0 when stdev is 0; excess kurtosis is 0 unless n >= 4 and
// variance > 0.
func (a *Accumulator) Finalize() Summary {
	if a.n == 0 {
		return Summary{}
	}

	n := float64(a.n)
	variance := a.m2 / n
	stdev := math.Sqrt(variance)

	var skew float64
	if stdev > 0 {
		skew = (a.m3 / n) / (stdev * stdev * stdev)
	}

	var kurt float64
	if a.n >= 4 && variance > 0 {
		kurt = (a.m4/n)/(variance*variance) - 3
	}

	return Summary{
		Count:          a.n,
		Min:            a.min,
		Max:            a.max,
		Mean:           a.mean,
		Variance:       variance,
		StdDev:         stdev,
		Skewness:       skew,
		ExcessKurtosis: kurt,
	}
}
