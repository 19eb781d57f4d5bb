package model

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
	"github.com/nosqlbench/vsmodel/pkg/numafit"
	"github.com/nosqlbench/vsmodel/pkg/stats"
	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// Observer receives per-dimension fit-chain telemetry as Complete runs. It
// exists so pkg/model stays free of any tracing/metrics dependency; callers
// that want observability (e.g. package obs) implement it and attach it to
// an Extractor before calling Complete.
type Observer interface {
	ObserveDimensionFit(dim, numaNode int, result ScalarModel, reservoirSamples int, duration time.Duration)
	ObserveEarlyStop()
}

// Extractor is the model-extractor StreamingAnalyzer: it accumulates
// per-dimension moments, an optional histogram, and a reservoir sample
// concurrently across dimensions, then on Complete runs the adaptive fit
// chain for every dimension across a NUMA-aware pool.
type Extractor struct {
	id          string
	cfg         Config
	parallelism int

	shape dataspace.Shape

	dimMu      []sync.Mutex
	accs       []*stats.Accumulator
	hists      []*stats.Histogram
	reservoirs []*Reservoir
	trackers   []*ConvergenceTracker

	// Observer, if set, is notified of per-dimension fit outcomes and
	// early-stop events. Nil by default (no observability overhead).
	Observer Observer
}

// NewExtractor builds an Extractor identified by id, configured by cfg, and
// using parallelism worker goroutines (spread across NUMA nodes) during
// Complete's fitting phase.
func NewExtractor(id string, cfg Config, parallelism int) *Extractor {
	return &Extractor{id: id, cfg: cfg, parallelism: parallelism}
}

// ID implements harness.StreamingAnalyzer.
func (e *Extractor) ID() string { return e.id }

// Initialize implements harness.StreamingAnalyzer.
func (e *Extractor) Initialize(shape dataspace.Shape) error {
	if err := shape.Validate(); err != nil {
		return err
	}

	if err := e.cfg.Validate(); err != nil {
		return fmt.Errorf("model: %s: %w: %w", e.id, err, vserrors.ErrInvalidConfig)
	}

	e.shape = shape

	dims := int(shape.Dimensionality)

	e.dimMu = make([]sync.Mutex, dims)
	e.accs = make([]*stats.Accumulator, dims)
	e.hists = make([]*stats.Histogram, dims)
	e.reservoirs = make([]*Reservoir, dims)
	e.trackers = make([]*ConvergenceTracker, dims)

	for d := 0; d < dims; d++ {
		e.accs[d] = stats.NewAccumulator()
		e.reservoirs[d] = NewReservoir(e.cfg.ReservoirSize, e.cfg.BaseSeed+int64(d), shape.Cardinality)
		e.trackers[d] = NewConvergenceTracker(e.cfg.ConvergenceThreshold)

		if e.cfg.HistogramEnabled {
			hist, err := stats.NewHistogram(e.cfg.HistogramBins)
			if err != nil {
				return fmt.Errorf("model: %s: dimension %d: %w", e.id, d, err)
			}

			e.hists[d] = hist
		}
	}

	return nil
}

// Accept implements harness.StreamingAnalyzer. chunk is always COLUMNAR (the
// harness transposes before fan-out), so each dimension's values are
// already contiguous.
func (e *Extractor) Accept(chunk dataspace.Chunk, startIndex uint64) error {
	dims := chunk.DimensionCount()

	g := new(errgroup.Group)

	for d := 0; d < dims; d++ {
		dim := d

		g.Go(func() error {
			values := chunk.GetDimensionValues(dim)

			e.dimMu[dim].Lock()
			defer e.dimMu[dim].Unlock()

			for _, v := range values {
				x := float64(v)

				e.accs[dim].Accept(x)

				if e.hists[dim] != nil {
					e.hists[dim].Accept(x)
				}

				if e.cfg.ReservoirSampling {
					e.reservoirs[dim].Accept(x)
				}
			}

			return nil
		})
	}

	return g.Wait()
}

// ShouldStopEarly implements harness.ConvergenceChecker. should_stop_early
// holds only once every dimension has at least MinSamplesForConvergence
// observations and all four of its moments have converged since the last
// check.
func (e *Extractor) ShouldStopEarly() bool {
	if !e.cfg.EarlyStopping {
		return false
	}

	for d := range e.accs {
		e.dimMu[d].Lock()
		summary := e.accs[d].Finalize()
		converged := e.trackers[d].Observe(summary.Count, summary.Mean, summary.Variance, summary.Skewness, summary.ExcessKurtosis)
		e.dimMu[d].Unlock()

		if summary.Count < MinSamplesForConvergence || !converged {
			return false
		}
	}

	if e.Observer != nil {
		e.Observer.ObserveEarlyStop()
	}

	return len(e.accs) > 0
}

// Output is what Extractor.Complete returns: the fitted manifest plus any
// per-dimension fit failures, which are recorded rather than aborting the
// whole run.
type Output struct {
	Model           *VectorSpaceModel
	DimensionErrors map[int]error
}

// Complete implements harness.StreamingAnalyzer. It spins up a transient
// NUMA-aware pool for the fitting phase only, shutting it down before
// returning.
func (e *Extractor) Complete() (any, error) {
	dims := len(e.accs)
	if dims == 0 {
		return nil, fmt.Errorf("model: %s: complete called with no dimensions initialized", e.id)
	}

	pool := numafit.NewPool(e.parallelism)
	defer pool.Shutdown()

	models := make([]ScalarModel, dims)

	errs := pool.RunWithNode(dims, func(d, node int) error {
		start := time.Now()

		e.dimMu[d].Lock()
		samples := e.reservoirs[d].Samples()
		hist := e.hists[d]
		e.dimMu[d].Unlock()

		var shapeInfo dimensionShape
		if hist != nil {
			modes := hist.FindModes(e.cfg.ProminenceThreshold)
			gaps := hist.GapAnalysis(e.cfg.ProminenceThreshold)
			shapeInfo.modeCount = len(modes)
			shapeInfo.multiModal = len(modes) > 1
			shapeInfo.hasGap = len(gaps) > 0
		}

		fitted, err := fitDimension(e.cfg, d, samples, shapeInfo, hist)
		if err != nil {
			return err
		}

		models[d] = fitted

		if e.Observer != nil {
			e.Observer.ObserveDimensionFit(d, node, fitted, len(samples), time.Since(start))
		}

		return nil
	})

	dimErrs := make(map[int]error)

	for d, err := range errs {
		if err != nil {
			dimErrs[d] = fmt.Errorf("model: %s: dimension %d: %w: %w", e.id, d, err, vserrors.ErrAnalyzer)
		}
	}

	manifest := &VectorSpaceModel{
		UniqueVectors: e.accs[0].Count(),
		Shape:         e.shape,
		PerDimModels:  models,
	}

	if len(dimErrs) == dims {
		return nil, fmt.Errorf("model: %s: every dimension failed to fit: %w", e.id, errors.Join(valuesOf(dimErrs)...))
	}

	return &Output{Model: manifest, DimensionErrors: dimErrs}, nil
}

func valuesOf(m map[int]error) []error {
	out := make([]error, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}

	return out
}
