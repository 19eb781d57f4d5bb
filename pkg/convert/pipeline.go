// Package convert implements the bounded multi-stage vector-file conversion
// pipeline (reference component C12): a reader stage, a bounded processing
// queue, a pool of normalizing processors, a bounded writing queue, and a
// single writer, adapted from the producer/consumer blob
// pipeline (pkg/framework/blob_pipeline.go) from git commit/blob loading to
// file-indexed vector normalization.
package convert

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// DefaultQueueDepth is the bounded capacity of both the processing and
// writing queues.
const DefaultQueueDepth = 1000

// MinNormalizableMagnitude is the L2-magnitude floor below which a vector
// is passed through unnormalized rather than divided by a near-zero value.
const MinNormalizableMagnitude = 1e-10

// FileVector is one vector read from an input file, tagged with the index
// of the file it came from.
type FileVector struct {
	FileIndex int
	Vector    []float32
}

// Reader yields (file_index, vector) pairs across a list of input files. It
// must enforce uniform dimension itself or let the Pipeline's dimension
// check catch drift; returning ok=false with a nil error signals a clean
// end of input.
type Reader interface {
	Next(ctx context.Context) (FileVector, bool, error)
}

// Writer consumes normalized vectors in whatever order the processor pool
// produces them; output order is not required to match input
// order.
type Writer interface {
	Write(ctx context.Context, v FileVector) error
	Close() error
}

// Pipeline wires a Reader through a processor pool to a Writer with bounded
// backpressure queues. A shared failure flag halts every stage as soon as
// any one of them errors.
type Pipeline struct {
	Reader     Reader
	Writer     Writer
	Workers    int
	QueueDepth int
	Normalize  bool
}

// NewPipeline builds a Pipeline with the given reader, writer, and
// processor pool size. QueueDepth defaults to DefaultQueueDepth.
func NewPipeline(reader Reader, writer Writer, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}

	return &Pipeline{Reader: reader, Writer: writer, Workers: workers, QueueDepth: DefaultQueueDepth, Normalize: true}
}

// Run drains the reader through the processor pool to the writer, returning
// the first error encountered by any stage. It blocks until every stage has
// exited; joinTimeout bounds how long Run waits for stages to unwind after
// ctx is cancelled or a fatal error is recorded before giving up and
// returning a cancellation error anyway.
func (p *Pipeline) Run(ctx context.Context, joinTimeout time.Duration) error {
	qd := p.QueueDepth
	if qd < 1 {
		qd = DefaultQueueDepth
	}

	processingQueue := make(chan FileVector, qd)
	writingQueue := make(chan FileVector, qd)

	var failed atomic.Bool

	var (
		errMu    sync.Mutex
		firstErr error
		failOnce sync.Once
	)

	failCh := make(chan struct{})

	recordErr := func(err error) {
		if err == nil {
			return
		}

		errMu.Lock()
		defer errMu.Unlock()

		if firstErr == nil {
			firstErr = err
		}

		failed.Store(true)
		failOnce.Do(func() { close(failCh) })
	}

	var readerWG, processorWG, writerWG sync.WaitGroup

	readerWG.Add(1)

	go func() {
		defer readerWG.Done()
		defer close(processingQueue)

		p.runReader(ctx, processingQueue, &failed, recordErr)
	}()

	processorWG.Add(p.Workers)

	for i := 0; i < p.Workers; i++ {
		go func() {
			defer processorWG.Done()

			p.runProcessor(ctx, processingQueue, writingQueue, &failed)
		}()
	}

	go func() {
		processorWG.Wait()
		close(writingQueue)
	}()

	writerWG.Add(1)

	go func() {
		defer writerWG.Done()

		p.runWriter(ctx, writingQueue, &failed, recordErr)
	}()

	done := make(chan struct{})

	go func() {
		readerWG.Wait()
		processorWG.Wait()
		writerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	case <-failCh:
	}

	select {
	case <-done:
	case <-time.After(joinTimeout):
		return fmt.Errorf("convert: pipeline stages did not join within %s: %w", joinTimeout, vserrors.ErrCancelled)
	}

	if closeErr := p.Writer.Close(); closeErr != nil {
		recordErr(fmt.Errorf("convert: closing writer: %w", closeErr))
	}

	errMu.Lock()
	defer errMu.Unlock()

	return firstErr
}

func (p *Pipeline) runReader(ctx context.Context, out chan<- FileVector, failed *atomic.Bool, recordErr func(error)) {
	dim := -1

	for {
		if failed.Load() {
			return
		}

		v, ok, err := p.Reader.Next(ctx)
		if err != nil {
			recordErr(fmt.Errorf("convert: reading: %w", err))

			return
		}

		if !ok {
			return
		}

		if dim == -1 {
			dim = len(v.Vector)
		} else if len(v.Vector) != dim {
			recordErr(fmt.Errorf("convert: file %d: vector has %d dimensions, expected %d: %w",
				v.FileIndex, len(v.Vector), dim, vserrors.ErrDimensionMismatch))

			return
		}

		select {
		case out <- v:
		case <-ctx.Done():
			recordErr(ctx.Err())

			return
		}
	}
}

func (p *Pipeline) runProcessor(ctx context.Context, in <-chan FileVector, out chan<- FileVector, failed *atomic.Bool) {
	for v := range in {
		if failed.Load() {
			continue
		}

		if p.Normalize {
			v.Vector = normalizeL2(v.Vector)
		}

		select {
		case out <- v:
		case <-ctx.Done():
			failed.Store(true)

			return
		}
	}
}

func (p *Pipeline) runWriter(ctx context.Context, in <-chan FileVector, failed *atomic.Bool, recordErr func(error)) {
	for v := range in {
		if failed.Load() {
			continue
		}

		if err := p.Writer.Write(ctx, v); err != nil {
			recordErr(fmt.Errorf("convert: writing: %w", err))
		}
	}
}

// normalizeL2 scales v to unit L2 length, leaving it unchanged if its
// magnitude is below MinNormalizableMagnitude.
func normalizeL2(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}

	magnitude := math.Sqrt(sumSq)
	if magnitude < MinNormalizableMagnitude {
		return v
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / magnitude)
	}

	return out
}
