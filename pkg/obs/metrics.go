package obs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	metricStageRunsTotal    = "vsmodel.stage.runs.total"
	metricStageDuration     = "vsmodel.stage.duration.seconds"
	metricStageErrorsTotal  = "vsmodel.stage.errors.total"
	metricStageInflight     = "vsmodel.stage.inflight"

	attrStage  = "stage"
	attrStatus = "status"

	statusOK    = "ok"
	statusError = "error"
)

// durationBucketBoundaries covers 1ms to 600s, spanning a single chunk
// accept call up to a full harness run over a multi-gigabyte source.
var durationBucketBoundaries = []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// StageMetrics holds the RED (rate/error/duration) instruments shared by
// every pipeline stage: harness runs, transport fetches, and the convert
// pipeline, generalizing the HTTP-request-shaped RED metrics pattern to this
// pipeline's batch-stage shape.
type StageMetrics struct {
	runsTotal   metric.Int64Counter
	duration    metric.Float64Histogram
	errorsTotal metric.Int64Counter
	inflight    metric.Int64UpDownCounter
}

// NewStageMetrics creates RED metric instruments from the given meter.
func NewStageMetrics(mt metric.Meter) (*StageMetrics, error) {
	runs, err := mt.Int64Counter(metricStageRunsTotal,
		metric.WithDescription("Total stage runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricStageRunsTotal, err)
	}

	dur, err := mt.Float64Histogram(metricStageDuration,
		metric.WithDescription("Stage duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricStageDuration, err)
	}

	errs, err := mt.Int64Counter(metricStageErrorsTotal,
		metric.WithDescription("Total stage errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricStageErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricStageInflight,
		metric.WithDescription("Number of in-flight stage runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: create %s: %w", metricStageInflight, err)
	}

	return &StageMetrics{runsTotal: runs, duration: dur, errorsTotal: errs, inflight: inflight}, nil
}

// RecordRun records a completed stage run with its name, status, and
// duration. Safe to call on a nil receiver (no-op).
func (sm *StageMetrics) RecordRun(ctx context.Context, stage, status string, duration time.Duration) {
	if sm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrStatus, status),
	)

	sm.runsTotal.Add(ctx, 1, attrs)
	sm.duration.Record(ctx, duration.Seconds(), attrs)

	if status == statusError {
		sm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStage, stage)))
	}
}

// TrackInflight increments the in-flight gauge for stage and returns a
// function to decrement it, for wrapping a long-running stage call.
func (sm *StageMetrics) TrackInflight(ctx context.Context, stage string) func() {
	if sm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrStage, stage))
	sm.inflight.Add(ctx, 1, attrs)

	return func() {
		sm.inflight.Add(ctx, -1, attrs)
	}
}

// Run records a stage's outcome around fn, wiring both the RED instruments
// and a tracer span in one call.
func (sm *StageMetrics) Run(ctx context.Context, tracer trace.Tracer, stage string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, stage)
	defer span.End()

	done := sm.TrackInflight(ctx, stage)
	defer done()

	start := time.Now()
	err := fn(ctx)
	status := statusOK

	if err != nil {
		status = statusError
		RecordSpanError(span, err)
	}

	sm.RecordRun(ctx, stage, status, time.Since(start))

	return err
}
