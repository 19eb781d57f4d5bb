package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// LocalFileTransport reads a local file through the same ChunkedTransport
// contract as a remote resource, but never hashes blocks: local-vs-remote
// parity covers only the read shape, not integrity verification, which is
// meaningless for a file already trusted by virtue of being local.
type LocalFileTransport struct {
	Path string
}

func (t *LocalFileTransport) Metadata(_ context.Context) (Metadata, error) {
	info, err := os.Stat(t.Path)
	if err != nil {
		return Metadata{}, fmt.Errorf("transport: stat %s: %w: %w", t.Path, err, vserrors.ErrTransport)
	}

	return Metadata{
		Size:           info.Size(),
		SupportsRanges: true,
		LastModified:   info.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

func (t *LocalFileTransport) FetchRange(_ context.Context, offset, length int64) (FetchResult, error) {
	start := time.Now()

	f, err := os.Open(t.Path)
	if err != nil {
		return FetchResult{}, fmt.Errorf("transport: open %s: %w: %w", t.Path, err, vserrors.ErrTransport)
	}
	defer f.Close()

	buf := make([]byte, length)

	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return FetchResult{}, fmt.Errorf("transport: read %s at %d: %w: %w", t.Path, offset, err, vserrors.ErrTransport)
	}

	return FetchResult{
		Data:            buf[:n],
		RequestedOffset: offset,
		RequestedLength: length,
		ActualLength:    int64(n),
		StartTime:       start,
		EndTime:         time.Now(),
	}, nil
}

// LocalMatchesRemote reports whether a previously downloaded local file
// still matches the remote resource described by remote, using size first
// and falling back to ETag or Last-Modified when present. It never trusts
// timestamps alone to mean identical content — a Last-Modified match is
// accepted only when no ETag is available to compare instead.
func LocalMatchesRemote(local, remote Metadata) bool {
	if local.Size != remote.Size {
		return false
	}

	if remote.ETag != "" {
		return local.ETag == remote.ETag
	}

	if remote.LastModified != "" {
		return local.LastModified == remote.LastModified
	}

	return true
}
