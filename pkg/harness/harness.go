package harness

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
	"github.com/nosqlbench/vsmodel/pkg/datasource"
	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// Harness drives a chunked DataSource through a set of StreamingAnalyzers,
// fanning each chunk out to every non-failed analyzer concurrently.
type Harness struct {
	analyzers  []StreamingAnalyzer
	failFast   bool
	onProgress ProgressCallback

	stopRequested atomic.Bool
}

// New builds a Harness over the given analyzers. failFast aborts the
// entire run on the first analyzer error instead of isolating it
// per-analyzer.
func New(analyzers []StreamingAnalyzer, failFast bool, onProgress ProgressCallback) *Harness {
	return &Harness{analyzers: analyzers, failFast: failFast, onProgress: onProgress}
}

// RequestStop cooperatively cancels the run; observed after the chunk
// currently in flight finishes.
func (h *Harness) RequestStop() { h.stopRequested.Store(true) }

// Run iterates source, transposing row-major chunks to columnar once per
// chunk and sharing that transpose across every analyzer, then calls
// Complete on every analyzer that never failed.
func (h *Harness) Run(ctx context.Context, source datasource.DataSource, chunkSize int) (*AnalysisResults, error) {
	start := time.Now()
	shape := source.Shape()

	var mu sync.Mutex

	failed := make(map[string]bool)
	errs := make(map[string]error)
	results := make(map[string]any)

	for _, a := range h.analyzers {
		if err := a.Initialize(shape); err != nil {
			wrapped := fmt.Errorf("harness: initialize %s: %w: %w", a.ID(), err, vserrors.ErrAnalyzer)
			errs[a.ID()] = wrapped
			failed[a.ID()] = true

			if h.failFast {
				return nil, wrapped
			}
		}
	}

	totalChunks := 0
	if shape.Cardinality > 0 && chunkSize > 0 {
		totalChunks = int((shape.Cardinality + uint64(chunkSize) - 1) / uint64(chunkSize))
	}

	it := source.Chunks(ctx, chunkSize)

	var processed uint64

	chunkNum := 0

	for {
		h.report(Loading, processed, shape.Cardinality, chunkNum, totalChunks)

		chunk, ok, err := it.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("harness: reading chunk %d: %w", chunkNum, err)
		}

		if !ok {
			break
		}

		h.report(Processing, processed, shape.Cardinality, chunkNum, totalChunks)

		columnar := chunk
		if chunk.Layout == dataspace.RowMajor {
			columnar = chunk.ToColumnar()
		}

		g, _ := errgroup.WithContext(ctx)

		for _, a := range h.analyzers {
			mu.Lock()
			skip := failed[a.ID()]
			mu.Unlock()

			if skip {
				continue
			}

			analyzer := a

			g.Go(func() error {
				acceptErr := analyzer.Accept(columnar, chunk.StartIndex)
				if acceptErr == nil {
					return nil
				}

				wrapped := fmt.Errorf("harness: accept on %s: %w: %w", analyzer.ID(), acceptErr, vserrors.ErrAnalyzer)

				mu.Lock()
				errs[analyzer.ID()] = wrapped
				failed[analyzer.ID()] = true
				mu.Unlock()

				if h.failFast {
					return wrapped
				}

				return nil
			})
		}

		if waitErr := g.Wait(); waitErr != nil {
			return nil, waitErr
		}

		processed += uint64(chunk.VectorCount())
		chunkNum++

		if h.stopRequested.Load() || h.earlyStopConverged() {
			break
		}
	}

	h.report(Completing, processed, shape.Cardinality, chunkNum, totalChunks)

	for _, a := range h.analyzers {
		mu.Lock()
		skip := failed[a.ID()]
		mu.Unlock()

		if skip {
			continue
		}

		out, err := a.Complete()
		if err != nil {
			errs[a.ID()] = fmt.Errorf("harness: complete %s: %w: %w", a.ID(), err, vserrors.ErrAnalyzer)

			continue
		}

		results[a.ID()] = out
	}

	return NewAnalysisResults(results, errs, time.Since(start)), nil
}

// earlyStopConverged polls every analyzer implementing ConvergenceChecker,
// including ones that have already failed; the run stops early only when
// at least one such analyzer exists and every one of them reports
// convergence.
func (h *Harness) earlyStopConverged() bool {
	found := false

	for _, a := range h.analyzers {
		cc, ok := a.(ConvergenceChecker)
		if !ok {
			continue
		}

		found = true

		if !cc.ShouldStopEarly() {
			return false
		}
	}

	return found
}

func (h *Harness) report(phase Phase, processed, total uint64, chunk, totalChunks int) {
	if h.onProgress == nil {
		return
	}

	var fraction float64
	if total > 0 {
		fraction = float64(processed) / float64(total)
	}

	h.onProgress(phase, fraction, processed, total, chunk, totalChunks)
}
