// Package datasource provides lazy, chunked access to a vector dataset in
// its declared layout, adapted from the
// streaming.Planner-driven commit iteration to a finite sequence of
// rectangular Chunks, with a prefetching decorator mirroring its
// hibernation-aware streaming loop (pkg/streaming/hibernatable.go).
package datasource

import (
	"context"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
)

// ChunkCallback is invoked once per chunk by ForEachChunk, receiving the
// chunk and the running start index of its first vector.
type ChunkCallback func(chunk dataspace.Chunk, startIndex uint64) error

// DataSource lazily yields the vectors of a dataset as a finite sequence of
// Chunks in its declared layout. Implementations must be safe to iterate
// exactly once; callers that need multiple passes construct a new source.
type DataSource interface {
	// Shape returns the dataset's declared cardinality, dimensionality,
	// and layout.
	Shape() dataspace.Shape

	// Chunks returns an iterator yielding chunks of at most chunkSize
	// vectors each, in the source's declared layout. The last chunk may
	// have fewer vectors; iteration past the end of the source returns
	// (zero, false, nil) from Next without failing the run.
	Chunks(ctx context.Context, chunkSize int) ChunkIterator

	// Close releases any backing resources (file descriptors, transport
	// connections, prefetch workers). Safe to call multiple times.
	Close() error
}

// ChunkIterator yields chunks one at a time. Next returns (chunk, true,
// nil) while data remains, (zero, false, nil) at clean end of stream, and
// (zero, false, err) on failure — after an error, subsequent calls to Next
// continue to return that error.
type ChunkIterator interface {
	Next(ctx context.Context) (dataspace.Chunk, bool, error)
}

// ForEachChunk drives an iterator to completion, supplying cb with each
// chunk and the running start index of its first vector — the default
// convenience form every DataSource can be driven through.
func ForEachChunk(ctx context.Context, it ChunkIterator, cb ChunkCallback) error {
	var startIndex uint64

	for {
		chunk, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		if err := cb(chunk, startIndex); err != nil {
			return err
		}

		startIndex += uint64(chunk.VectorCount())
	}
}
