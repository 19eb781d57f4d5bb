package obs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFitOutcomesTotal = "vsmodel.fit.outcomes.total"
	metricFitKSDistance    = "vsmodel.fit.ks_distance"
	metricNUMADimDuration  = "vsmodel.numa.dimension.duration.seconds"
	metricReservoirSamples = "vsmodel.reservoir.samples"
	metricConvergedDims    = "vsmodel.model.converged_dimensions.total"

	attrKind = "kind"
	attrNode = "numa_node"
)

// ksBucketBoundaries covers the full [0,1] range a KS distance can take.
var ksBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.02, 0.03, 0.05, 0.08, 0.12, 0.2, 0.35, 0.5, 0.75, 1.0}

// FitMetrics holds the OTel instruments recording per-dimension fit-chain
// outcomes: which ScalarModel Kind each dimension landed on, its KS
// distance, and the reservoir sample count it fit against.
type FitMetrics struct {
	outcomesTotal  metric.Int64Counter
	ksDistance     metric.Float64Histogram
	reservoirSize  metric.Int64Histogram
	convergedTotal metric.Int64Counter
}

// NewFitMetrics creates fit-chain metric instruments from the given meter.
func NewFitMetrics(mt metric.Meter) (*FitMetrics, error) {
	outcomes, err := mt.Int64Counter(metricFitOutcomesTotal,
		metric.WithDescription("Per-dimension fit outcomes by scalar model kind"),
		metric.WithUnit("{dimension}"),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricFitOutcomesTotal, err)
	}

	ks, err := mt.Float64Histogram(metricFitKSDistance,
		metric.WithDescription("Kolmogorov-Smirnov distance of the accepted fit"),
		metric.WithExplicitBucketBoundaries(ksBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricFitKSDistance, err)
	}

	reservoir, err := mt.Int64Histogram(metricReservoirSamples,
		metric.WithDescription("Reservoir sample count a dimension's fit drew from"),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricReservoirSamples, err)
	}

	converged, err := mt.Int64Counter(metricConvergedDims,
		metric.WithDescription("Dimensions whose moments converged before exhausting the source"),
		metric.WithUnit("{dimension}"),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricConvergedDims, err)
	}

	return &FitMetrics{
		outcomesTotal:  outcomes,
		ksDistance:     ks,
		reservoirSize:  reservoir,
		convergedTotal: converged,
	}, nil
}

// RecordFit records one dimension's fit-chain outcome. Safe to call on a
// nil receiver (no-op).
func (fm *FitMetrics) RecordFit(ctx context.Context, kind string, ks float64, reservoirSamples int) {
	if fm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrKind, kind))

	fm.outcomesTotal.Add(ctx, 1, attrs)
	fm.ksDistance.Record(ctx, ks, attrs)
	fm.reservoirSize.Record(ctx, int64(reservoirSamples), attrs)
}

// RecordEarlyStop records that a dimension converged and stopped
// accumulating before the source was exhausted.
func (fm *FitMetrics) RecordEarlyStop(ctx context.Context) {
	if fm == nil {
		return
	}

	fm.convergedTotal.Add(ctx, 1)
}

// NUMAMetrics holds the OTel instrument recording per-node dimension-fit
// duration from the NUMA-aware fitting pool, so uneven node assignment or a
// slow node shows up directly in dashboards.
type NUMAMetrics struct {
	dimDuration metric.Float64Histogram
}

// NewNUMAMetrics creates the NUMA pool metric instrument from the given
// meter.
func NewNUMAMetrics(mt metric.Meter) (*NUMAMetrics, error) {
	dur, err := mt.Float64Histogram(metricNUMADimDuration,
		metric.WithDescription("Per-dimension fit duration within a NUMA pool node"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricNUMADimDuration, err)
	}

	return &NUMAMetrics{dimDuration: dur}, nil
}

// RecordDimensionFit records how long a single dimension's fit chain took
// on the given NUMA node. Safe to call on a nil receiver (no-op).
func (nm *NUMAMetrics) RecordDimensionFit(ctx context.Context, node int, duration time.Duration) {
	if nm == nil {
		return
	}

	nm.dimDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Int(attrNode, node),
	))
}
