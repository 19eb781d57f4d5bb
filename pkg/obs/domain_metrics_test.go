package obs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/nosqlbench/vsmodel/pkg/obs"
)

func TestFitMetrics_RecordFitAndEarlyStop(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	fm, err := obs.NewFitMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()

	fm.RecordFit(ctx, "Parametric", 0.02, 8000)
	fm.RecordEarlyStop(ctx)

	rm := collectMetrics(t, reader)

	require.NotNil(t, findMetric(rm, "vsmodel.fit.outcomes.total"))
	require.NotNil(t, findMetric(rm, "vsmodel.fit.ks_distance"))
	require.NotNil(t, findMetric(rm, "vsmodel.reservoir.samples"))
	require.NotNil(t, findMetric(rm, "vsmodel.model.converged_dimensions.total"))
}

func TestFitMetrics_NilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var fm *obs.FitMetrics

	require.NotPanics(t, func() {
		fm.RecordFit(context.Background(), "Empirical", 0.1, 500)
		fm.RecordEarlyStop(context.Background())
	})
}

func TestNUMAMetrics_RecordDimensionFit(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	nm, err := obs.NewNUMAMetrics(mp.Meter("test"))
	require.NoError(t, err)

	nm.RecordDimensionFit(context.Background(), 1, 25*time.Millisecond)

	rm := collectMetrics(t, reader)
	require.NotNil(t, findMetric(rm, "vsmodel.numa.dimension.duration.seconds"))
}

func TestNUMAMetrics_NilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var nm *obs.NUMAMetrics

	require.NotPanics(t, func() {
		nm.RecordDimensionFit(context.Background(), 0, time.Millisecond)
	})
}
