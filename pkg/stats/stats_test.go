package stats_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlbench/vsmodel/pkg/stats"
)

func TestAccumulator_MatchesNaiveMoments(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))

	values := make([]float64, 2000)
	for i := range values {
		values[i] = rng.NormFloat64()*3 + 10
	}

	acc := stats.NewAccumulator()
	for _, v := range values {
		acc.Accept(v)
	}

	summary := acc.Finalize()

	var sum float64
	for _, v := range values {
		sum += v
	}

	naiveMean := sum / float64(len(values))

	assert.InDelta(t, naiveMean, summary.Mean, 1e-6)
	assert.Equal(t, uint64(len(values)), summary.Count)
	assert.Greater(t, summary.StdDev, 0.0)
}

func TestAccumulator_CombineMatchesSequential(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))

	values := make([]float64, 3000)
	for i := range values {
		values[i] = rng.Float64() * 100
	}

	sequential := stats.NewAccumulator()
	for _, v := range values {
		sequential.Accept(v)
	}

	mid := len(values) / 3
	a := stats.NewAccumulator()
	b := stats.NewAccumulator()

	for _, v := range values[:mid] {
		a.Accept(v)
	}

	for _, v := range values[mid:] {
		b.Accept(v)
	}

	a.Combine(b)

	seqSummary := sequential.Finalize()
	combinedSummary := a.Finalize()

	assert.InDelta(t, seqSummary.Mean, combinedSummary.Mean, 1e-6)
	assert.InDelta(t, seqSummary.Variance, combinedSummary.Variance, 1e-6)
	assert.InDelta(t, seqSummary.Skewness, combinedSummary.Skewness, 1e-4)
	assert.InDelta(t, seqSummary.ExcessKurtosis, combinedSummary.ExcessKurtosis, 1e-3)
}

func TestAccumulator_ReconstructFromSeeds(t *testing.T) {
	t.Parallel()

	seeds := stats.Seeds{
		Count:    1000,
		Min:      -1,
		Max:      1,
		Mean:     0,
		Variance: 0.25,
		Skewness: 0,
		Kurtosis: 3, // un-excess, so excess kurtosis should come out near 0
	}

	a := stats.ReconstructFromSeeds(seeds)
	summary := a.Finalize()

	assert.InDelta(t, 0, summary.Mean, 1e-9)
	assert.InDelta(t, 0.25, summary.Variance, 1e-9)
	assert.InDelta(t, 0, summary.ExcessKurtosis, 1e-9)
}

func TestHistogram_RejectsTooFewBins(t *testing.T) {
	t.Parallel()

	_, err := stats.NewHistogram(5)
	require.Error(t, err)
}

func TestHistogram_ExpandsBoundsAndConservesTotal(t *testing.T) {
	t.Parallel()

	h, err := stats.NewHistogram(20)
	require.NoError(t, err)

	values := []float64{0, 0.1, -0.2, 5, -5, 3, -3, 0.05}
	for _, v := range values {
		h.Accept(v)
	}

	var total uint64
	for _, c := range h.Counts() {
		total += c
	}

	assert.Equal(t, uint64(len(values)), total)

	min, max := h.Bounds()
	assert.LessOrEqual(t, min, -5.0)
	assert.GreaterOrEqual(t, max, 5.0)
}

func TestHistogram_FindModesDetectsBimodalDistribution(t *testing.T) {
	t.Parallel()

	h, err := stats.NewHistogram(40)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		if i%2 == 0 {
			h.Accept(rng.NormFloat64()*0.5 - 5)
		} else {
			h.Accept(rng.NormFloat64()*0.5 + 5)
		}
	}

	modes := h.FindModes(0.1)
	assert.GreaterOrEqual(t, len(modes), 2)
	assert.True(t, h.IsMultiModal(0.1))
}

func TestHistogram_UnimodalIsNotMultiModal(t *testing.T) {
	t.Parallel()

	h, err := stats.NewHistogram(30)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 2000; i++ {
		h.Accept(rng.NormFloat64())
	}

	assert.False(t, h.IsMultiModal(0.3))
}

func TestHistogram_GapAnalysisFindsSeparationBetweenClusters(t *testing.T) {
	t.Parallel()

	h, err := stats.NewHistogram(50)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 3000; i++ {
		if i%2 == 0 {
			h.Accept(rng.NormFloat64()*0.2 - 10)
		} else {
			h.Accept(rng.NormFloat64()*0.2 + 10)
		}
	}

	gaps := h.GapAnalysis(0.2)
	assert.NotEmpty(t, gaps)

	for _, g := range gaps {
		assert.Less(t, g.ContrastRatio, 0.4)
		assert.False(t, math.IsNaN(g.ContrastRatio))
	}
}
