// Package transport exposes a random-access byte channel over a resource
// that may be local or remote, with Merkle-verified block caching for
// remote reads, adapted from the LRU blob cache
// (pkg/cache/lru.go) and JSON-sidecar checkpoint metadata
// (pkg/checkpoint/manager.go) into a range-read transport for vector
// files too large to download eagerly.
package transport

import (
	"context"
	"time"
)

// Metadata describes a resource's size and range-read capability, as
// returned by a HEAD request or its local-file equivalent.
type Metadata struct {
	Size           int64
	SupportsRanges bool
	ContentType    string
	LastModified   string
	ETag           string
}

// FetchResult is the outcome of a single range read.
type FetchResult struct {
	Data             []byte
	RequestedOffset  int64
	RequestedLength  int64
	ActualLength     int64
	StartTime        time.Time
	EndTime          time.Time
}

// ChunkedTransport exposes range reads over a local or remote resource.
type ChunkedTransport interface {
	// Metadata returns the resource's size and capabilities, obtained via
	// HEAD or a Range: 0-0 probe.
	Metadata(ctx context.Context) (Metadata, error)

	// FetchRange reads length bytes starting at offset.
	FetchRange(ctx context.Context, offset, length int64) (FetchResult, error)
}
