package convert_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlbench/vsmodel/pkg/convert"
)

type staticSource struct{ vectors [][]float32 }

func (s staticSource) Vectors() ([][]float32, error) { return s.vectors, nil }

type memoryWriter struct {
	mu  sync.Mutex
	got []convert.FileVector
}

func (w *memoryWriter) Write(_ context.Context, v convert.FileVector) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.got = append(w.got, v)

	return nil
}

func (w *memoryWriter) Close() error { return nil }

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	return math.Sqrt(sum)
}

func TestPipeline_NormalizesVectorsToUnitLength(t *testing.T) {
	t.Parallel()

	sources := []convert.FileVectorSource{
		staticSource{vectors: [][]float32{{3, 4}, {1, 0}}},
		staticSource{vectors: [][]float32{{0, 5}}},
	}

	reader := convert.NewMultiFileReader(sources)
	writer := &memoryWriter{}

	p := convert.NewPipeline(reader, writer, 3)

	require.NoError(t, p.Run(context.Background(), 5*time.Second))
	require.Len(t, writer.got, 3)

	for _, v := range writer.got {
		assert.InDelta(t, 1.0, magnitude(v.Vector), 1e-6)
	}
}

func TestPipeline_PassesThroughNearZeroMagnitudeUnnormalized(t *testing.T) {
	t.Parallel()

	sources := []convert.FileVectorSource{
		staticSource{vectors: [][]float32{{0, 0}}},
	}

	reader := convert.NewMultiFileReader(sources)
	writer := &memoryWriter{}

	p := convert.NewPipeline(reader, writer, 1)

	require.NoError(t, p.Run(context.Background(), 5*time.Second))
	require.Len(t, writer.got, 1)
	assert.Equal(t, []float32{0, 0}, writer.got[0].Vector)
}

func TestPipeline_FailsOnDimensionMismatchAcrossFiles(t *testing.T) {
	t.Parallel()

	sources := []convert.FileVectorSource{
		staticSource{vectors: [][]float32{{1, 2, 3}}},
		staticSource{vectors: [][]float32{{1, 2}}},
	}

	reader := convert.NewMultiFileReader(sources)
	writer := &memoryWriter{}

	p := convert.NewPipeline(reader, writer, 1)

	err := p.Run(context.Background(), 5*time.Second)
	require.Error(t, err)
}

func TestPipeline_TagsVectorsWithCorrectFileIndex(t *testing.T) {
	t.Parallel()

	sources := []convert.FileVectorSource{
		staticSource{vectors: [][]float32{{1, 0}}},
		staticSource{vectors: [][]float32{{0, 1}}},
	}

	reader := convert.NewMultiFileReader(sources)
	writer := &memoryWriter{}

	p := convert.NewPipeline(reader, writer, 1)
	require.NoError(t, p.Run(context.Background(), 5*time.Second))

	byFile := map[int]bool{}
	for _, v := range writer.got {
		byFile[v.FileIndex] = true
	}

	assert.True(t, byFile[0])
	assert.True(t, byFile[1])
}
