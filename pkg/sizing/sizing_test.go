package sizing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlbench/vsmodel/pkg/sizing"
)

func TestChunkSizer_ClampsToBounds(t *testing.T) {
	t.Parallel()

	s := sizing.NewChunkSizer()

	// Tiny budget clamps up to MinChunkSize.
	size, err := s.ChunkSize(128, 1024)
	require.NoError(t, err)
	assert.Equal(t, sizing.MinChunkSize, size)

	// Huge budget clamps down to MaxChunkSize.
	size, err = s.ChunkSize(4, 1<<40)
	require.NoError(t, err)
	assert.Equal(t, sizing.MaxChunkSize, size)
}

func TestChunkSizer_ExplicitBudgetOverridesFraction(t *testing.T) {
	t.Parallel()

	s := sizing.ChunkSizer{BudgetBytes: 100_000_000, OverheadFactor: 1.2}

	size, err := s.ChunkSize(100, 1)
	require.NoError(t, err)
	assert.Greater(t, size, sizing.MinChunkSize)
}

func TestChunkSizer_RejectsNegativeDimension(t *testing.T) {
	t.Parallel()

	s := sizing.NewChunkSizer()
	_, err := s.ChunkSize(-1, 1<<30)
	require.Error(t, err)
}

func TestChunkSizer_RejectsZeroOverhead(t *testing.T) {
	t.Parallel()

	s := sizing.ChunkSizer{BudgetFraction: 0.5, OverheadFactor: 0}
	_, err := s.ChunkSize(10, 1<<30)
	require.Error(t, err)
}

func TestParseSize_AbsoluteAndFraction(t *testing.T) {
	t.Parallel()

	bytesBudget, frac, err := sizing.ParseSize("4g")
	require.NoError(t, err)
	assert.Zero(t, frac)
	assert.Equal(t, int64(4_000_000_000), bytesBudget)

	_, frac, err = sizing.ParseSize("0.6")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, frac, 1e-9)
}

func TestParseSize_RejectsOutOfRangeFraction(t *testing.T) {
	t.Parallel()

	_, _, err := sizing.ParseSize("1.5")
	require.Error(t, err)
}

func TestMonitor_PressureLevels(t *testing.T) {
	t.Parallel()

	m := sizing.NewMonitor(1000)
	m.Stat = func() (uint64, uint64) { return 100, 1000 }
	assert.Equal(t, sizing.Low, m.PressureLevel())

	m.Stat = func() (uint64, uint64) { return 750, 1000 }
	assert.Equal(t, sizing.Moderate, m.PressureLevel())

	m.Stat = func() (uint64, uint64) { return 900, 1000 }
	assert.Equal(t, sizing.High, m.PressureLevel())
}

func TestMonitor_RecommendedPrefetchCount(t *testing.T) {
	t.Parallel()

	m := sizing.NewMonitor(1000)

	m.Stat = func() (uint64, uint64) { return 100, 1000 }
	assert.Equal(t, 4, m.RecommendedPrefetchCount(4))

	m.Stat = func() (uint64, uint64) { return 750, 1000 }
	assert.Equal(t, 2, m.RecommendedPrefetchCount(4))

	m.Stat = func() (uint64, uint64) { return 900, 1000 }
	assert.Equal(t, 1, m.RecommendedPrefetchCount(4))
}

func TestMonitor_ValidateThresholds(t *testing.T) {
	t.Parallel()

	m := sizing.NewMonitor(1000)
	m.ModerateThreshold = 0.9
	m.HighThreshold = 0.5
	require.Error(t, m.Validate())
}

func TestMonitor_WaitForMemoryReliefTimesOutUnderSustainedPressure(t *testing.T) {
	t.Parallel()

	m := sizing.NewMonitor(1000)
	m.Stat = func() (uint64, uint64) { return 999, 1000 }

	ok := m.WaitForMemoryRelief(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
}

func TestMonitor_WaitForMemoryReliefSucceedsImmediatelyWhenNotHigh(t *testing.T) {
	t.Parallel()

	m := sizing.NewMonitor(1000)
	m.Stat = func() (uint64, uint64) { return 100, 1000 }

	ok := m.WaitForMemoryRelief(context.Background(), time.Second)
	assert.True(t, ok)
}

func TestMonitor_WaitForMemoryReliefObservesContextCancellation(t *testing.T) {
	t.Parallel()

	m := sizing.NewMonitor(1000)
	m.Stat = func() (uint64, uint64) { return 999, 1000 }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := m.WaitForMemoryRelief(ctx, time.Second)
	assert.False(t, ok)
}
