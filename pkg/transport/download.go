package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// DefaultDownloadChunkSize is the default range-request size download_to
// splits a resource into.
const DefaultDownloadChunkSize = 10 * 1024 * 1024

// DownloadOptions configures DownloadTo's sharding and retry behavior.
type DownloadOptions struct {
	ChunkSize   int64
	Parallelism int
	Retry       RetryPolicy
}

// DefaultDownloadOptions returns the recommended defaults: 10 MiB chunks,
// max(8, cpu/2) parallelism.
func DefaultDownloadOptions() DownloadOptions {
	parallelism := runtime.NumCPU() / 2
	if parallelism < 8 {
		parallelism = 8
	}

	return DownloadOptions{
		ChunkSize:   DefaultDownloadChunkSize,
		Parallelism: parallelism,
		Retry:       NewRetryPolicy(),
	}
}

// DownloadTo splits the resource behind t into parallel range requests of
// opts.ChunkSize, writing each at its absolute offset into a pre-sized
// file at targetPath. It returns immediately with a handle tracking
// progress; the actual transfer runs in background goroutines. If force is
// false and a file of the expected size already exists at targetPath, the
// download is treated as already complete.
func DownloadTo(ctx context.Context, t ChunkedTransport, targetPath string, force bool, opts DownloadOptions) (*DownloadProgress, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultDownloadChunkSize
	}

	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultDownloadOptions().Parallelism
	}

	meta, err := t.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	if !force {
		if info, statErr := os.Stat(targetPath); statErr == nil && info.Size() == meta.Size {
			dp := newDownloadProgress(targetPath, meta.Size)
			dp.addBytes(meta.Size)
			dp.finish(nil)

			return dp, nil
		}
	}

	f, err := os.Create(targetPath) //nolint:gosec // caller-controlled target path
	if err != nil {
		return nil, fmt.Errorf("transport: creating %s: %w: %w", targetPath, err, vserrors.ErrTransport)
	}

	if err := f.Truncate(meta.Size); err != nil {
		f.Close()

		return nil, fmt.Errorf("transport: presizing %s: %w: %w", targetPath, err, vserrors.ErrTransport)
	}

	dp := newDownloadProgress(targetPath, meta.Size)

	go runDownload(ctx, t, f, targetPath, meta.Size, opts, dp)

	return dp, nil
}

func runDownload(ctx context.Context, t ChunkedTransport, f *os.File, targetPath string, size int64, opts DownloadOptions, dp *DownloadProgress) {
	defer f.Close()

	var failed atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)

	numChunks := (size + opts.ChunkSize - 1) / opts.ChunkSize

	for i := int64(0); i < numChunks; i++ {
		offset := i * opts.ChunkSize
		length := opts.ChunkSize

		if offset+length > size {
			length = size - offset
		}

		g.Go(func() error {
			if failed.Load() {
				return nil
			}

			data, err := fetchChunkWithRetry(gctx, t, offset, length, opts.Retry)
			if err != nil {
				failed.Store(true)

				return err
			}

			if _, err := f.WriteAt(data, offset); err != nil {
				failed.Store(true)

				return fmt.Errorf("transport: writing chunk at %d: %w: %w", offset, err, vserrors.ErrTransport)
			}

			dp.addBytes(int64(len(data)))

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		os.Remove(targetPath)
		dp.finish(err)

		return
	}

	dp.finish(nil)
}

func fetchChunkWithRetry(ctx context.Context, t ChunkedTransport, offset, length int64, retry RetryPolicy) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= retry.maxAttempts(); attempt++ {
		result, err := t.FetchRange(ctx, offset, length)
		if err == nil {
			return result.Data, nil
		}

		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.Fatal() {
			return nil, err
		}

		lastErr = err

		timer := time.NewTimer(retry.Backoff(attempt))

		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()

			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("transport: chunk at %d exhausted retries: %w", offset, lastErr)
}
