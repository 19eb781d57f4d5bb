package datasource

import "github.com/nosqlbench/vsmodel/pkg/dataspace"

// VectorFileReader is the external-collaborator contract for a concrete
// vector file format decoder (fvecs, bvecs, parquet, ...). The core never
// implements one; callers inject a reader for whatever format their input
// uses. ReadRange returns count vectors of reader-declared dimension,
// starting at the ordinal start, each a freshly allocated []float32.
type VectorFileReader interface {
	VectorCount() uint64
	Dimension() uint32
	ReadRange(start uint64, count int) ([][]float32, error)
}

// ColumnarFileReader is the external-collaborator contract for a file
// format stored dimension-major on disk, letting FileBackedColumnar read a
// contiguous slice per dimension without transposing in memory.
// ReadColumnarRange returns a dim-major buffer of count vectors starting at ordinal start:
// contiguous blocks of count float32s, one per dimension, in dimension
// order.
type ColumnarFileReader interface {
	VectorCount() uint64
	Dimension() uint32
	ReadColumnarRange(start uint64, count int) ([]float32, error)
}

// IndexedVectorAccessor is the external-collaborator contract FromVectorSpace
// wraps: an opaque store that yields vectors by ordinal, such as an
// in-process vector index or a memory-mapped vector space.
type IndexedVectorAccessor interface {
	Shape() dataspace.Shape
	ReadRange(start uint64, count int) ([][]float32, error)
}
