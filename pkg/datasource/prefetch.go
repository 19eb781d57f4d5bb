package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
	"github.com/nosqlbench/vsmodel/pkg/sizing"
)

// DefaultPrefetchDepth is the configured prefetch queue depth before the
// memory-pressure monitor scales it down.
const DefaultPrefetchDepth = 4

// DefaultCloseGracePeriod bounds how long Close waits for the background
// producer to notice cancellation before abandoning it.
const DefaultCloseGracePeriod = 2 * time.Second

// DefaultPressureWaitTimeout bounds how long the producer waits for memory
// relief before enqueuing anyway, to avoid deadlocking the pipeline.
const DefaultPressureWaitTimeout = 500 * time.Millisecond

// Prefetching wraps a delegate DataSource with a single background
// producer goroutine and a bounded queue, in the style of the
// hibernation-aware streaming loop (pkg/streaming/hibernatable.go) in
// spirit: a cooperative background worker whose failure or cancellation is
// observed by the foreground consumer rather than propagated directly.
type Prefetching struct {
	delegate          DataSource
	monitor           *sizing.Monitor
	configuredDepth   int
	closeGracePeriod  time.Duration
	pressureWaitLimit time.Duration
}

// NewPrefetching wraps delegate. monitor may be nil, in which case the
// configured depth is used unscaled.
func NewPrefetching(delegate DataSource, monitor *sizing.Monitor, configuredDepth int) *Prefetching {
	if configuredDepth < 1 {
		configuredDepth = DefaultPrefetchDepth
	}

	return &Prefetching{
		delegate:          delegate,
		monitor:           monitor,
		configuredDepth:   configuredDepth,
		closeGracePeriod:  DefaultCloseGracePeriod,
		pressureWaitLimit: DefaultPressureWaitTimeout,
	}
}

func (p *Prefetching) Shape() dataspace.Shape { return p.delegate.Shape() }

func (p *Prefetching) Chunks(ctx context.Context, chunkSize int) ChunkIterator {
	depth := p.configuredDepth
	if p.monitor != nil {
		depth = p.monitor.RecommendedPrefetchCount(p.configuredDepth)
	}

	if depth < 1 {
		depth = 1
	}

	pctx, cancel := context.WithCancel(ctx)

	it := &prefetchIterator{
		parent: p,
		queue:  make(chan prefetchItem, depth),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go it.produce(pctx, p.delegate.Chunks(pctx, chunkSize))

	return it
}

// Close closes the delegate only. It does not stop producer goroutines
// started by Chunks; a producer exits when its stream ends, when the
// context passed to Chunks is cancelled, or when its iterator's Close is
// called.
func (p *Prefetching) Close() error { return p.delegate.Close() }

type prefetchItem struct {
	chunk dataspace.Chunk
	ok    bool
	err   error
}

type prefetchIterator struct {
	parent *Prefetching
	queue  chan prefetchItem
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	sticky error // once a producer error surfaces, every later Next repeats it
}

func (it *prefetchIterator) produce(ctx context.Context, src ChunkIterator) {
	defer close(it.done)
	defer close(it.queue)

	for {
		chunk, ok, err := src.Next(ctx)
		if err != nil {
			select {
			case it.queue <- prefetchItem{err: err}:
			case <-ctx.Done():
			}

			return
		}

		if !ok {
			return
		}

		if it.parent.monitor != nil && it.parent.monitor.PressureLevel() == sizing.High {
			it.parent.monitor.WaitForMemoryRelief(ctx, it.parent.pressureWaitLimit)
			// Timeout or relief, either way proceed rather than deadlock.
		}

		select {
		case it.queue <- prefetchItem{chunk: chunk, ok: true}:
		case <-ctx.Done():
			return
		}
	}
}

func (it *prefetchIterator) Next(ctx context.Context) (dataspace.Chunk, bool, error) {
	if it.sticky != nil {
		return dataspace.Chunk{}, false, it.sticky
	}

	select {
	case item, open := <-it.queue:
		if !open {
			return dataspace.Chunk{}, false, nil
		}

		if item.err != nil {
			it.sticky = item.err

			return dataspace.Chunk{}, false, item.err
		}

		return item.chunk, item.ok, nil
	case <-ctx.Done():
		it.sticky = ctx.Err()

		return dataspace.Chunk{}, false, ctx.Err()
	}
}

// Close signals the producer to stop and waits up to the configured grace
// period for it to exit before abandoning it.
func (it *prefetchIterator) Close() {
	it.once.Do(func() {
		it.cancel()

		timer := time.NewTimer(it.parent.closeGracePeriod)
		defer timer.Stop()

		select {
		case <-it.done:
		case <-timer.C:
			// Forcible abort: the producer goroutine may still be blocked
			// on a delegate read; it will exit once that call returns and
			// observes ctx.Done(), but we don't wait for it further.
		}
	})
}
