package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// VerifiedTransport wraps a ChunkedTransport with a fixed-size Merkle
// block cache: every served byte passes through a block whose hash is
// checked against the sidecar before being handed to the caller. A hash
// mismatch discards the fetched block and re-fetches it, counted as a retry.
type VerifiedTransport struct {
	Delegate ChunkedTransport
	Sidecar  MerkleSidecar
	Cache    *BlockCache
	Retry    RetryPolicy
}

// NewVerifiedTransport builds a VerifiedTransport with the default retry
// policy.
func NewVerifiedTransport(delegate ChunkedTransport, sidecar MerkleSidecar, cache *BlockCache) *VerifiedTransport {
	return &VerifiedTransport{Delegate: delegate, Sidecar: sidecar, Cache: cache, Retry: NewRetryPolicy()}
}

func (v *VerifiedTransport) Metadata(ctx context.Context) (Metadata, error) {
	return v.Delegate.Metadata(ctx)
}

func (v *VerifiedTransport) FetchRange(ctx context.Context, offset, length int64) (FetchResult, error) {
	start := time.Now()
	blockSize := int64(v.Sidecar.ChunkSize)

	startBlock := int(offset / blockSize)
	endBlock := int((offset + length - 1) / blockSize)

	buf := make([]byte, 0, length)

	for blockIdx := startBlock; blockIdx <= endBlock; blockIdx++ {
		blockData, err := v.verifiedBlock(ctx, blockIdx, blockSize)
		if err != nil {
			return FetchResult{}, err
		}

		blockStart := int64(blockIdx) * blockSize

		lo := int64(0)
		if blockIdx == startBlock {
			lo = offset - blockStart
		}

		hi := int64(len(blockData))
		if blockIdx == endBlock {
			want := offset + length - blockStart
			if want < hi {
				hi = want
			}
		}

		if lo < 0 || lo > int64(len(blockData)) || hi > int64(len(blockData)) || lo > hi {
			return FetchResult{}, fmt.Errorf("transport: range %d+%d misaligned against block %d: %w",
				offset, length, blockIdx, vserrors.ErrInvalidConfig)
		}

		buf = append(buf, blockData[lo:hi]...)
	}

	return FetchResult{
		Data:            buf,
		RequestedOffset: offset,
		RequestedLength: length,
		ActualLength:    int64(len(buf)),
		StartTime:       start,
		EndTime:         time.Now(),
	}, nil
}

func (v *VerifiedTransport) verifiedBlock(ctx context.Context, blockIdx int, blockSize int64) ([]byte, error) {
	if cached, ok := v.Cache.Get(blockIdx); ok {
		return cached, nil
	}

	if blockIdx < 0 || blockIdx >= len(v.Sidecar.BlockHashes) {
		return nil, fmt.Errorf("transport: block %d out of range: %w", blockIdx, vserrors.ErrInvalidConfig)
	}

	expected := v.Sidecar.BlockHashes[blockIdx]

	var lastErr error

	for attempt := 1; attempt <= v.Retry.maxAttempts(); attempt++ {
		result, err := v.Delegate.FetchRange(ctx, int64(blockIdx)*blockSize, blockSize)
		if err != nil {
			var statusErr *HTTPStatusError
			if errors.As(err, &statusErr) && statusErr.Fatal() {
				return nil, err
			}

			lastErr = err

			if !v.sleepOrCancel(ctx, attempt) {
				return nil, ctx.Err()
			}

			continue
		}

		if !VerifyBlock(result.Data, expected) {
			lastErr = fmt.Errorf("transport: block %d failed merkle verification: %w", blockIdx, vserrors.ErrIntegrity)

			if !v.sleepOrCancel(ctx, attempt) {
				return nil, ctx.Err()
			}

			continue
		}

		v.Cache.Put(blockIdx, result.Data)

		return result.Data, nil
	}

	return nil, fmt.Errorf("transport: block %d exhausted retries: %w", blockIdx, lastErr)
}

func (v *VerifiedTransport) sleepOrCancel(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(v.Retry.Backoff(attempt))
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
