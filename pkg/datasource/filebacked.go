package datasource

import (
	"context"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
	"github.com/nosqlbench/vsmodel/pkg/sizing"
)

// FileBackedColumnar reads transposed chunks directly from a vector file
// through an injected ColumnarFileReader, avoiding an in-memory transpose
// for formats that already store data dimension-major.
type FileBackedColumnar struct {
	reader ColumnarFileReader
	shape  dataspace.Shape
	closer func() error
}

// NewFileBackedColumnar wraps reader. closer releases the underlying file
// descriptor on Close; pass nil if the reader owns no closable resource.
func NewFileBackedColumnar(reader ColumnarFileReader, closer func() error) *FileBackedColumnar {
	return &FileBackedColumnar{
		reader: reader,
		shape: dataspace.Shape{
			Cardinality:    reader.VectorCount(),
			Dimensionality: reader.Dimension(),
			Layout:         dataspace.Columnar,
		},
		closer: closer,
	}
}

func (s *FileBackedColumnar) Shape() dataspace.Shape { return s.shape }

// OptimalChunkSize computes the chunk cardinality a ChunkSizer derives
// from this source's declared dimension and the given available budget.
func (s *FileBackedColumnar) OptimalChunkSize(sizer sizing.ChunkSizer, availableBytes int64) (int, error) {
	return sizer.ChunkSize(int(s.shape.Dimensionality), availableBytes)
}

func (s *FileBackedColumnar) Chunks(_ context.Context, chunkSize int) ChunkIterator {
	if chunkSize < 1 {
		chunkSize = 1
	}

	return &columnarIterator{source: s, chunkSize: chunkSize}
}

func (s *FileBackedColumnar) Close() error {
	if s.closer == nil {
		return nil
	}

	return s.closer()
}

type columnarIterator struct {
	source    *FileBackedColumnar
	chunkSize int
	cursor    uint64
}

func (it *columnarIterator) Next(_ context.Context) (dataspace.Chunk, bool, error) {
	total := it.source.shape.Cardinality
	if it.cursor >= total {
		return dataspace.Chunk{}, false, nil
	}

	remaining := total - it.cursor

	count := uint64(it.chunkSize)
	if count > remaining {
		count = remaining
	}

	dim := int(it.source.shape.Dimensionality)

	data, err := it.source.reader.ReadColumnarRange(it.cursor, int(count))
	if err != nil {
		return dataspace.Chunk{}, false, err
	}

	chunk := dataspace.Chunk{
		Layout:     dataspace.Columnar,
		StartIndex: it.cursor,
		Rows:       dim,
		Cols:       int(count),
		Data:       data,
	}

	it.cursor += count

	return chunk, true, nil
}
