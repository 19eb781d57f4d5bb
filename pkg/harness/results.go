package harness

import "time"

// AnalysisResults is an immutable wrapper over a completed run's
// per-analyzer outputs and failures, with typed lookup by id.
type AnalysisResults struct {
	results        map[string]any
	errors         map[string]error
	processingTime time.Duration
}

// NewAnalysisResults builds an AnalysisResults snapshot. The maps passed
// in are copied so later mutation by the caller cannot affect the
// snapshot.
func NewAnalysisResults(results map[string]any, errs map[string]error, processingTime time.Duration) *AnalysisResults {
	r := &AnalysisResults{
		results:        make(map[string]any, len(results)),
		errors:         make(map[string]error, len(errs)),
		processingTime: processingTime,
	}

	for k, v := range results {
		r.results[k] = v
	}

	for k, v := range errs {
		r.errors[k] = v
	}

	return r
}

// Get returns the output of the analyzer with the given id, if it
// succeeded.
func (r *AnalysisResults) Get(id string) (any, bool) {
	v, ok := r.results[id]

	return v, ok
}

// Err returns the failure recorded for the analyzer with the given id, if
// any.
func (r *AnalysisResults) Err(id string) (error, bool) {
	e, ok := r.errors[id]

	return e, ok
}

// Succeeded returns the ids of every analyzer that completed without
// error.
func (r *AnalysisResults) Succeeded() []string {
	ids := make([]string, 0, len(r.results))
	for id := range r.results {
		ids = append(ids, id)
	}

	return ids
}

// Failed returns the ids of every analyzer that recorded an error.
func (r *AnalysisResults) Failed() []string {
	ids := make([]string, 0, len(r.errors))
	for id := range r.errors {
		ids = append(ids, id)
	}

	return ids
}

// ProcessingTime returns the wall-clock duration of the harness run.
func (r *AnalysisResults) ProcessingTime() time.Duration { return r.processingTime }

// Summary is a compact human-readable view of the run's outcome.
type Summary struct {
	SucceededCount int
	FailedCount    int
	ProcessingTime time.Duration
}

// Summarize returns a Summary of this result set.
func (r *AnalysisResults) Summarize() Summary {
	return Summary{
		SucceededCount: len(r.results),
		FailedCount:    len(r.errors),
		ProcessingTime: r.processingTime,
	}
}
