package datasource_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
	"github.com/nosqlbench/vsmodel/pkg/datasource"
	"github.com/nosqlbench/vsmodel/pkg/sizing"
)

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

func TestInMemoryRowMajor_ChunksAndForEachChunk(t *testing.T) {
	t.Parallel()

	src, err := datasource.NewInMemoryRowMajor(makeVectors(10, 3))
	require.NoError(t, err)

	ctx := context.Background()
	it := src.Chunks(ctx, 4)

	var (
		totalVectors int
		starts       []uint64
	)

	err = datasource.ForEachChunk(ctx, it, func(chunk dataspace.Chunk, startIndex uint64) error {
		starts = append(starts, startIndex)
		totalVectors += chunk.VectorCount()

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 10, totalVectors)
	assert.Equal(t, []uint64{0, 4, 8}, starts)
}

func TestInMemoryRowMajor_RejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{{1, 2, 3}, {1, 2}}
	_, err := datasource.NewInMemoryRowMajor(vectors)
	require.Error(t, err)
}

type stubIterator struct {
	chunks []dataspace.Chunk
	err    error
	idx    int
}

func (s *stubIterator) Next(context.Context) (dataspace.Chunk, bool, error) {
	if s.idx >= len(s.chunks) {
		if s.err != nil {
			return dataspace.Chunk{}, false, s.err
		}

		return dataspace.Chunk{}, false, nil
	}

	c := s.chunks[s.idx]
	s.idx++

	return c, true, nil
}

type stubSource struct {
	shape dataspace.Shape
	it    *stubIterator
}

func (s *stubSource) Shape() dataspace.Shape { return s.shape }
func (s *stubSource) Chunks(context.Context, int) datasource.ChunkIterator { return s.it }
func (s *stubSource) Close() error { return nil }

func TestPrefetching_PassesThroughAllChunks(t *testing.T) {
	t.Parallel()

	chunks := []dataspace.Chunk{
		dataspace.NewChunk(dataspace.RowMajor, 0, 2, 2),
		dataspace.NewChunk(dataspace.RowMajor, 2, 2, 2),
	}
	delegate := &stubSource{
		shape: dataspace.Shape{Cardinality: 4, Dimensionality: 2, Layout: dataspace.RowMajor},
		it:    &stubIterator{chunks: chunks},
	}

	p := datasource.NewPrefetching(delegate, nil, 2)

	ctx := context.Background()
	it := p.Chunks(ctx, 2)

	var got int

	err := datasource.ForEachChunk(ctx, it, func(chunk dataspace.Chunk, startIndex uint64) error {
		got++

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestPrefetching_PropagatesProducerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	delegate := &stubSource{
		shape: dataspace.Shape{Cardinality: 2, Dimensionality: 2, Layout: dataspace.RowMajor},
		it:    &stubIterator{chunks: nil, err: boom},
	}

	p := datasource.NewPrefetching(delegate, nil, 2)

	ctx := context.Background()
	it := p.Chunks(ctx, 2)

	err := datasource.ForEachChunk(ctx, it, func(dataspace.Chunk, uint64) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPrefetching_ScalesDepthUnderPressure(t *testing.T) {
	t.Parallel()

	m := sizing.NewMonitor(1000)
	m.Stat = func() (uint64, uint64) { return 999, 1000 }

	delegate := &stubSource{
		shape: dataspace.Shape{Cardinality: 0, Dimensionality: 1},
		it:    &stubIterator{},
	}

	p := datasource.NewPrefetching(delegate, m, 8)
	_ = p.Chunks(context.Background(), 1)
	// RecommendedPrefetchCount(8) at HIGH pressure is 1; this exercises the
	// scaling path without asserting on unexported queue depth.
}
