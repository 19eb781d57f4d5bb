package config

import (
	"runtime"

	"golang.org/x/time/rate"

	"github.com/nosqlbench/vsmodel/pkg/model"
	"github.com/nosqlbench/vsmodel/pkg/sizing"
)

// reservedCores is subtracted from runtime.NumCPU when Parallelism.Workers
// is left at its 0 ("use everything available") default, leaving headroom
// for the reader/writer goroutines and the host OS.
const reservedCores = 10

// ResolveWorkers returns the worker count the NUMA fitting pool should use: the configured value verbatim if set, otherwise every
// detected CPU minus reservedCores (floored at 1).
func (p Parallelism) ResolveWorkers() int {
	if p.Workers > 0 {
		return p.Workers
	}

	n := runtime.NumCPU() - reservedCores
	if n < 1 {
		n = 1
	}

	return n
}

// ChunkSizer builds the sizing.ChunkSizer this configuration describes.
func (s Sizing) ChunkSizer() sizing.ChunkSizer {
	return sizing.ChunkSizer{
		BudgetFraction: s.MemoryBudgetFraction,
		BudgetBytes:    int64(s.MemoryBudgetBytes),
		OverheadFactor: s.OverheadFactor,
	}
}

// Monitor builds a sizing.Monitor against this configuration's pressure
// thresholds and byte budget.
func (s Sizing) Monitor(budget uint64) *sizing.Monitor {
	mon := sizing.NewMonitor(budget)
	mon.ModerateThreshold = s.ModerateThreshold
	mon.HighThreshold = s.HighThreshold

	return mon
}

// RateLimiter builds the *rate.Limiter an HTTPTransport should throttle
// through, sized to MaxBytesPerSec with a one-second burst allowance. A
// non-positive MaxBytesPerSec disables throttling (nil limiter).
func (t Transport) RateLimiter() *rate.Limiter {
	if t.MaxBytesPerSec <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(t.MaxBytesPerSec), int(t.MaxBytesPerSec))
}

// ModelConfig builds the model.Config this configuration describes,
// leaving the collaborator fields (Fitters, MixtureFitter, Sampler,
// GoodnessOfFit) for the caller to attach since they are concrete
// algorithm implementations assembled at the call site, not configuration
// values.
func (m Model) ModelConfig(baseSeed int64) model.Config {
	strategy := model.ClusteringHard
	if m.ClusteringStrategy == "EM" {
		strategy = model.ClusteringEM
	}

	return model.Config{
		ReservoirSize:         m.ReservoirSize,
		ReservoirSampling:     m.ReservoirSampling,
		BaseSeed:              baseSeed,
		HistogramEnabled:      m.HistogramEnabled,
		HistogramBins:         m.HistogramBins,
		ProminenceThreshold:   m.ProminenceThreshold,
		ConvergenceThreshold:  m.ConvergenceThreshold,
		EarlyStopping:         m.EarlyStopping,
		KSThresholdParametric: m.KSThresholdParametric,
		KSThresholdComposite:  m.KSThresholdComposite,
		MaxComponents:         m.MaxComponents,
		ClusteringStrategy:    strategy,
		InternalVerification:  m.InternalVerification,
		VerificationSamples:   m.VerificationSampleCount(),
	}
}
