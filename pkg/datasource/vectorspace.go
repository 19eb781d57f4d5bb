package datasource

import (
	"context"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
)

// FromVectorSpace wraps an IndexedVectorAccessor and produces ROW_MAJOR
// chunks via bulk range reads against it.
type FromVectorSpace struct {
	accessor IndexedVectorAccessor
}

// NewFromVectorSpace wraps accessor without copying its declared shape.
func NewFromVectorSpace(accessor IndexedVectorAccessor) *FromVectorSpace {
	return &FromVectorSpace{accessor: accessor}
}

func (s *FromVectorSpace) Shape() dataspace.Shape { return s.accessor.Shape() }

func (s *FromVectorSpace) Chunks(_ context.Context, chunkSize int) ChunkIterator {
	if chunkSize < 1 {
		chunkSize = 1
	}

	return &vectorSpaceIterator{source: s, chunkSize: chunkSize}
}

func (s *FromVectorSpace) Close() error { return nil }

type vectorSpaceIterator struct {
	source    *FromVectorSpace
	chunkSize int
	cursor    uint64
}

func (it *vectorSpaceIterator) Next(_ context.Context) (dataspace.Chunk, bool, error) {
	shape := it.source.Shape()

	total := shape.Cardinality
	if it.cursor >= total {
		return dataspace.Chunk{}, false, nil
	}

	remaining := total - it.cursor

	count := uint64(it.chunkSize)
	if count > remaining {
		count = remaining
	}

	vectors, err := it.source.accessor.ReadRange(it.cursor, int(count))
	if err != nil {
		return dataspace.Chunk{}, false, err
	}

	dim := int(shape.Dimensionality)
	chunk := dataspace.NewChunk(dataspace.RowMajor, it.cursor, len(vectors), dim)

	for i, v := range vectors {
		copy(chunk.Data[i*dim:(i+1)*dim], v)
	}

	it.cursor += count

	return chunk, true, nil
}
