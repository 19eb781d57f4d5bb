package progress

import (
	"sync"

	"github.com/nosqlbench/vsmodel/pkg/harness"
)

// Snapshot is the most recently observed progress state.
type Snapshot struct {
	Phase       harness.Phase
	Fraction    float64
	Processed   uint64
	Total       uint64
	Chunk       int
	TotalChunks int
}

// Recorder keeps the latest Snapshot under a lock, the same
// read/write-locked-struct idiom used for in-memory caches
// and registries. It lets a poller (a health endpoint, a CLI status command)
// read current progress without coupling to whatever is driving the harness.
type Recorder struct {
	mu   sync.RWMutex
	last Snapshot
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Callback returns a harness.ProgressCallback bound to this Recorder.
func (r *Recorder) Callback() harness.ProgressCallback {
	return r.onProgress
}

func (r *Recorder) onProgress(phase harness.Phase, fraction float64, processed, total uint64, chunk, totalChunks int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = Snapshot{
		Phase:       phase,
		Fraction:    fraction,
		Processed:   processed,
		Total:       total,
		Chunk:       chunk,
		TotalChunks: totalChunks,
	}
}

// Snapshot returns the most recently observed progress state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.last
}

// Multi fans a single harness.ProgressCallback invocation out to several
// callbacks, e.g. a Terminal for interactive display plus a Recorder for a
// status endpoint running in the same process.
func Multi(callbacks ...harness.ProgressCallback) harness.ProgressCallback {
	return func(phase harness.Phase, fraction float64, processed, total uint64, chunk, totalChunks int) {
		for _, cb := range callbacks {
			if cb != nil {
				cb(phase, fraction, processed, total, chunk, totalChunks)
			}
		}
	}
}
