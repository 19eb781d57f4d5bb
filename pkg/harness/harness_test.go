package harness_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
	"github.com/nosqlbench/vsmodel/pkg/datasource"
	"github.com/nosqlbench/vsmodel/pkg/harness"
)

// countingAnalyzer records how many vectors and which start indices it saw,
// and always receives COLUMNAR chunks.
type countingAnalyzer struct {
	id string

	mu          sync.Mutex
	initialized bool
	shape       dataspace.Shape
	starts      []uint64
	sawLayouts  []dataspace.Layout
	vectorsSeen int

	initErr    error
	acceptErr  error
	completeErr error
}

func (a *countingAnalyzer) ID() string { return a.id }

func (a *countingAnalyzer) Initialize(shape dataspace.Shape) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.initialized = true
	a.shape = shape

	return a.initErr
}

func (a *countingAnalyzer) Accept(chunk dataspace.Chunk, startIndex uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.starts = append(a.starts, startIndex)
	a.sawLayouts = append(a.sawLayouts, chunk.Layout)
	a.vectorsSeen += chunk.VectorCount()

	return a.acceptErr
}

func (a *countingAnalyzer) Complete() (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.completeErr != nil {
		return nil, a.completeErr
	}

	return a.vectorsSeen, nil
}

func TestHarness_FansOutColumnarChunksAndAggregatesResults(t *testing.T) {
	t.Parallel()

	src, err := datasource.NewInMemoryRowMajor(makeVectors(10, 3))
	require.NoError(t, err)

	a1 := &countingAnalyzer{id: "a1"}
	a2 := &countingAnalyzer{id: "a2"}

	h := harness.New([]harness.StreamingAnalyzer{a1, a2}, false, nil)

	results, err := h.Run(context.Background(), src, 4)
	require.NoError(t, err)

	assert.Empty(t, results.Failed())
	assert.ElementsMatch(t, []string{"a1", "a2"}, results.Succeeded())

	out1, ok := results.Get("a1")
	require.True(t, ok)
	assert.Equal(t, 10, out1)

	assert.True(t, a1.initialized)
	assert.Equal(t, []uint64{0, 4, 8}, a1.starts)

	for _, layout := range a1.sawLayouts {
		assert.Equal(t, dataspace.Columnar, layout)
	}
}

func makeVectors(n, d int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		row := make([]float32, d)
		for j := range row {
			row[j] = float32(i*d + j)
		}

		out[i] = row
	}

	return out
}

func TestHarness_IsolatesPerAnalyzerAcceptFailureWithoutFailFast(t *testing.T) {
	t.Parallel()

	src, err := datasource.NewInMemoryRowMajor(makeVectors(8, 2))
	require.NoError(t, err)

	boom := errors.New("boom")
	good := &countingAnalyzer{id: "good"}
	bad := &countingAnalyzer{id: "bad", acceptErr: boom}

	h := harness.New([]harness.StreamingAnalyzer{good, bad}, false, nil)

	results, err := h.Run(context.Background(), src, 3)
	require.NoError(t, err)

	assert.Contains(t, results.Failed(), "bad")
	assert.Contains(t, results.Succeeded(), "good")

	badErr, ok := results.Err("bad")
	require.True(t, ok)
	assert.ErrorIs(t, badErr, boom)

	// good analyzer keeps seeing every chunk, bad analyzer is skipped after
	// its first failure.
	assert.Equal(t, 8, good.vectorsSeen)
	assert.Less(t, bad.vectorsSeen, good.vectorsSeen)
}

func TestHarness_FailFastAbortsRunOnFirstAcceptError(t *testing.T) {
	t.Parallel()

	src, err := datasource.NewInMemoryRowMajor(makeVectors(8, 2))
	require.NoError(t, err)

	boom := errors.New("boom")
	bad := &countingAnalyzer{id: "bad", acceptErr: boom}

	h := harness.New([]harness.StreamingAnalyzer{bad}, true, nil)

	_, err = h.Run(context.Background(), src, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestHarness_InitializeFailureIsolatesAnalyzerFromAcceptAndComplete(t *testing.T) {
	t.Parallel()

	src, err := datasource.NewInMemoryRowMajor(makeVectors(4, 2))
	require.NoError(t, err)

	boom := errors.New("init boom")
	bad := &countingAnalyzer{id: "bad", initErr: boom}
	good := &countingAnalyzer{id: "good"}

	h := harness.New([]harness.StreamingAnalyzer{bad, good}, false, nil)

	results, err := h.Run(context.Background(), src, 4)
	require.NoError(t, err)

	assert.Contains(t, results.Failed(), "bad")
	assert.Zero(t, bad.vectorsSeen)
	assert.Equal(t, 4, good.vectorsSeen)
}

// convergingAnalyzer reports ready to stop after a configured number of
// Accept calls.
type convergingAnalyzer struct {
	countingAnalyzer
	stopAfter int32
	accepted  int32
}

func (a *convergingAnalyzer) Accept(chunk dataspace.Chunk, startIndex uint64) error {
	atomic.AddInt32(&a.accepted, 1)

	return a.countingAnalyzer.Accept(chunk, startIndex)
}

func (a *convergingAnalyzer) ShouldStopEarly() bool {
	return atomic.LoadInt32(&a.accepted) >= a.stopAfter
}

func TestHarness_StopsEarlyWhenConvergenceCheckerSignalsStop(t *testing.T) {
	t.Parallel()

	src, err := datasource.NewInMemoryRowMajor(makeVectors(20, 2))
	require.NoError(t, err)

	conv := &convergingAnalyzer{countingAnalyzer: countingAnalyzer{id: "conv"}, stopAfter: 2}

	h := harness.New([]harness.StreamingAnalyzer{conv}, false, nil)

	results, err := h.Run(context.Background(), src, 4)
	require.NoError(t, err)

	assert.Contains(t, results.Succeeded(), "conv")
	// 5 chunks of 4 exist; convergence after 2 accepted chunks means the
	// remaining chunks are never delivered.
	assert.Less(t, conv.vectorsSeen, 20)
}

func TestHarness_RequestStopHaltsBeforeNextChunk(t *testing.T) {
	t.Parallel()

	src, err := datasource.NewInMemoryRowMajor(makeVectors(20, 2))
	require.NoError(t, err)

	a := &countingAnalyzer{id: "a"}
	h := harness.New([]harness.StreamingAnalyzer{a}, false, nil)
	h.RequestStop()

	results, err := h.Run(context.Background(), src, 4)
	require.NoError(t, err)
	assert.Contains(t, results.Succeeded(), "a")
	assert.Equal(t, 4, a.vectorsSeen)
}

func TestHarness_ReportsProgressPhases(t *testing.T) {
	t.Parallel()

	src, err := datasource.NewInMemoryRowMajor(makeVectors(6, 2))
	require.NoError(t, err)

	var phases []harness.Phase

	var mu sync.Mutex

	onProgress := func(phase harness.Phase, fraction float64, processed, total uint64, chunk, totalChunks int) {
		mu.Lock()
		defer mu.Unlock()

		phases = append(phases, phase)
	}

	a := &countingAnalyzer{id: "a"}
	h := harness.New([]harness.StreamingAnalyzer{a}, false, onProgress)

	_, err = h.Run(context.Background(), src, 3)
	require.NoError(t, err)

	require.NotEmpty(t, phases)
	assert.Equal(t, harness.Completing, phases[len(phases)-1])
}

func TestHarness_CompleteErrorIsRecordedNotFatal(t *testing.T) {
	t.Parallel()

	src, err := datasource.NewInMemoryRowMajor(makeVectors(4, 2))
	require.NoError(t, err)

	boom := errors.New("complete boom")
	bad := &countingAnalyzer{id: "bad", completeErr: boom}
	good := &countingAnalyzer{id: "good"}

	h := harness.New([]harness.StreamingAnalyzer{bad, good}, false, nil)

	results, err := h.Run(context.Background(), src, 4)
	require.NoError(t, err)

	assert.Contains(t, results.Failed(), "bad")
	assert.Contains(t, results.Succeeded(), "good")
}
