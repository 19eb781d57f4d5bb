package obs

import (
	"context"
	"time"

	"github.com/nosqlbench/vsmodel/pkg/model"
)

// ModelObserver adapts FitMetrics and NUMAMetrics to model.Observer, so an
// Extractor can report telemetry without pkg/model importing OTel.
type ModelObserver struct {
	Ctx  context.Context
	Fit  *FitMetrics
	NUMA *NUMAMetrics
}

// NewModelObserver builds a ModelObserver recording to fit and numa, using
// ctx for every instrument call (a background context is fine since fit
// telemetry has no per-request trace to attach to).
func NewModelObserver(ctx context.Context, fit *FitMetrics, numa *NUMAMetrics) *ModelObserver {
	return &ModelObserver{Ctx: ctx, Fit: fit, NUMA: numa}
}

// ObserveDimensionFit implements model.Observer.
func (o *ModelObserver) ObserveDimensionFit(_, numaNode int, result model.ScalarModel, reservoirSamples int, duration time.Duration) {
	o.Fit.RecordFit(o.Ctx, result.Kind.String(), result.KSDistance, reservoirSamples)
	o.NUMA.RecordDimensionFit(o.Ctx, numaNode, duration)
}

// ObserveEarlyStop implements model.Observer.
func (o *ModelObserver) ObserveEarlyStop() {
	o.Fit.RecordEarlyStop(o.Ctx)
}
