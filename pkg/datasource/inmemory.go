package datasource

import (
	"context"
	"fmt"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// InMemoryRowMajor wraps a rectangular [N][D] buffer already resident in
// memory and serves it as contiguous ROW_MAJOR chunks.
type InMemoryRowMajor struct {
	vectors [][]float32
	shape   dataspace.Shape
}

// NewInMemoryRowMajor validates that every row shares the declared
// dimension and wraps vectors without copying.
func NewInMemoryRowMajor(vectors [][]float32) (*InMemoryRowMajor, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("datasource: no vectors supplied: %w", vserrors.ErrNoData)
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("datasource: zero-dimension vectors: %w", vserrors.ErrInvalidConfig)
	}

	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("datasource: vector %d has %d dims, want %d: %w",
				i, len(v), dim, vserrors.ErrDimensionMismatch)
		}
	}

	return &InMemoryRowMajor{
		vectors: vectors,
		shape: dataspace.Shape{
			Cardinality:    uint64(len(vectors)),
			Dimensionality: uint32(dim),
			Layout:         dataspace.RowMajor,
		},
	}, nil
}

func (s *InMemoryRowMajor) Shape() dataspace.Shape { return s.shape }

func (s *InMemoryRowMajor) Chunks(_ context.Context, chunkSize int) ChunkIterator {
	if chunkSize < 1 {
		chunkSize = 1
	}

	return &inMemoryIterator{source: s, chunkSize: chunkSize}
}

func (s *InMemoryRowMajor) Close() error { return nil }

type inMemoryIterator struct {
	source    *InMemoryRowMajor
	chunkSize int
	cursor    int
}

func (it *inMemoryIterator) Next(_ context.Context) (dataspace.Chunk, bool, error) {
	total := len(it.source.vectors)
	if it.cursor >= total {
		return dataspace.Chunk{}, false, nil
	}

	end := it.cursor + it.chunkSize
	if end > total {
		end = total
	}

	dim := int(it.source.shape.Dimensionality)
	chunk := dataspace.NewChunk(dataspace.RowMajor, uint64(it.cursor), end-it.cursor, dim)

	for v := it.cursor; v < end; v++ {
		copy(chunk.Data[(v-it.cursor)*dim:(v-it.cursor+1)*dim], it.source.vectors[v])
	}

	it.cursor = end

	return chunk, true, nil
}
