package transport

import (
	"context"
	"sync/atomic"
	"time"
)

// ProgressSnapshot is a point-in-time view of a tracked transport's
// cumulative throughput, reported after each FetchRange call.
type ProgressSnapshot struct {
	CumulativeBytes int64
	ThroughputBps   float64
	ChunkIndex      int64
	TotalChunks     int64
}

// ProgressCallback observes a ProgressSnapshot after each tracked fetch.
type ProgressCallback func(ProgressSnapshot)

// ProgressTracking decorates a ChunkedTransport, accumulating bytes fetched
// and throughput across calls and reporting them via an optional callback.
type ProgressTracking struct {
	Delegate    ChunkedTransport
	TotalChunks int64
	OnProgress  ProgressCallback

	cumulativeBytes atomic.Int64
	chunkIndex      atomic.Int64
	started         time.Time
	startOnce       atomic.Bool
}

// NewProgressTracking wraps delegate, reporting against an expected total
// of totalChunks fetches.
func NewProgressTracking(delegate ChunkedTransport, totalChunks int64, onProgress ProgressCallback) *ProgressTracking {
	return &ProgressTracking{Delegate: delegate, TotalChunks: totalChunks, OnProgress: onProgress}
}

func (p *ProgressTracking) Metadata(ctx context.Context) (Metadata, error) {
	return p.Delegate.Metadata(ctx)
}

func (p *ProgressTracking) FetchRange(ctx context.Context, offset, length int64) (FetchResult, error) {
	if p.startOnce.CompareAndSwap(false, true) {
		p.started = time.Now()
	}

	result, err := p.Delegate.FetchRange(ctx, offset, length)
	if err != nil {
		return result, err
	}

	total := p.cumulativeBytes.Add(result.ActualLength)
	idx := p.chunkIndex.Add(1)

	elapsed := time.Since(p.started).Seconds()

	var throughput float64
	if elapsed > 0 {
		throughput = float64(total) / elapsed
	}

	if p.OnProgress != nil {
		p.OnProgress(ProgressSnapshot{
			CumulativeBytes: total,
			ThroughputBps:   throughput,
			ChunkIndex:      idx,
			TotalChunks:     p.TotalChunks,
		})
	}

	return result, nil
}

// DownloadProgress tracks an in-flight download_to call, carrying the
// target path, total/current byte counts, and a completion signal.
type DownloadProgress struct {
	TargetPath   string
	TotalBytes   int64
	currentBytes atomic.Int64
	done         chan struct{}
	err          error
}

func newDownloadProgress(targetPath string, totalBytes int64) *DownloadProgress {
	return &DownloadProgress{
		TargetPath: targetPath,
		TotalBytes: totalBytes,
		done:       make(chan struct{}),
	}
}

// CurrentBytes returns the bytes written so far.
func (d *DownloadProgress) CurrentBytes() int64 { return d.currentBytes.Load() }

// Done returns a channel closed once the download completes or fails.
func (d *DownloadProgress) Done() <-chan struct{} { return d.done }

// Err returns the download's terminal error, if any. Valid only after Done
// is closed.
func (d *DownloadProgress) Err() error { return d.err }

// Wait blocks until the download completes or ctx is cancelled.
func (d *DownloadProgress) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DownloadProgress) addBytes(n int64) { d.currentBytes.Add(n) }

func (d *DownloadProgress) finish(err error) {
	d.err = err
	close(d.done)
}
