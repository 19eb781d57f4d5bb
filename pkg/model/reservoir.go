package model

import "math/rand"

// Reservoir implements Algorithm R reservoir sampling over a stream of
// float64s, bounded to a fixed capacity. Per-dimension RNGs are seeded
// deterministically by the caller (base_seed + dimension) so repeated runs
// over the same data produce bitwise-identical reservoirs.
type Reservoir struct {
	capacity int
	rng      *rand.Rand
	values   []float64
	seen     uint64

	// disabled is set when the caller knows the reservoir's capacity is
	// large enough to hold the entire dataset; Accept then behaves as an
	// unconditional append so the streaming and non-streaming paths see
	// identical samples.
	disabled bool
}

// NewReservoir builds a reservoir of the given capacity seeded with seed.
// If expectedCardinality is known and does not exceed capacity, sampling is
// disabled and every value is retained.
func NewReservoir(capacity int, seed int64, expectedCardinality uint64) *Reservoir {
	r := &Reservoir{
		capacity: capacity,
		rng:      rand.New(rand.NewSource(seed)), //nolint:gosec // reproducibility, not security
		values:   make([]float64, 0, capacity),
	}

	if expectedCardinality > 0 && expectedCardinality <= uint64(capacity) {
		r.disabled = true
		r.values = make([]float64, 0, expectedCardinality)
	}

	return r
}

// Accept folds one stream value into the reservoir.
func (r *Reservoir) Accept(x float64) {
	r.seen++

	if r.disabled {
		r.values = append(r.values, x)

		return
	}

	if len(r.values) < r.capacity {
		r.values = append(r.values, x)

		return
	}

	j := r.rng.Int63n(int64(r.seen))
	if j < int64(r.capacity) {
		r.values[j] = x
	}
}

// Samples returns a copy of the values currently retained.
func (r *Reservoir) Samples() []float64 {
	out := make([]float64, len(r.values))
	copy(out, r.values)

	return out
}

// Len returns the number of values currently retained (<= capacity unless
// disabled).
func (r *Reservoir) Len() int { return len(r.values) }

// Disabled reports whether sampling was disabled because the reservoir was
// sized to hold the whole stream.
func (r *Reservoir) Disabled() bool { return r.disabled }
