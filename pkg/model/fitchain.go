package model

import (
	"fmt"

	"github.com/nosqlbench/vsmodel/pkg/stats"
)

// fitState names the states of the per-dimension adaptive fit state machine.
// It exists purely for documentation/tracing; the control flow in
// fitDimension below is what actually implements the transitions.
type fitState int

const (
	stateInit fitState = iota
	stateAccumulating
	stateFitParam
	stateFitComposite
	stateFitEmpirical
	stateAccept
)

func (s fitState) String() string {
	switch s {
	case stateAccumulating:
		return "ACCUMULATING"
	case stateFitParam:
		return "FIT_PARAM"
	case stateFitComposite:
		return "FIT_COMPOSITE"
	case stateFitEmpirical:
		return "FIT_EMPIRICAL"
	case stateAccept:
		return "ACCEPT"
	default:
		return "INIT"
	}
}

// dimensionShape carries the histogram-derived facts the fit chain needs
// about a dimension besides its raw samples.
type dimensionShape struct {
	multiModal bool
	hasGap     bool
	modeCount  int
}

// better implements the tie-break rule: lower KS distance wins; at a near
// tie, fewer modes wins; at a further tie, parametric beats composite beats
// empirical.
func better(a, b ScalarModel) bool {
	const epsilon = 1e-9

	if diff := a.KSDistance - b.KSDistance; diff < -epsilon {
		return true
	} else if diff > epsilon {
		return false
	}

	if a.ModeCount != b.ModeCount {
		return a.ModeCount < b.ModeCount
	}

	return a.Kind < b.Kind
}

// fitDimension runs the adaptive fit chain for one dimension's accumulated
// samples and histogram: parametric, then (if triggered)
// composite, then empirical fallback, with a final KS+penalty comparison.
func fitDimension(cfg Config, dim int, samples []float64, shape dimensionShape, hist *stats.Histogram) (ScalarModel, error) {
	state := stateFitParam

	var (
		best    ScalarModel
		haveAny bool
		lastErr error
	)

	if !shape.multiModal && !shape.hasGap {
		if model, ok := fitParametric(cfg, samples, &best, &haveAny, &lastErr); ok {
			return model, nil
		}
	}

	state = stateFitComposite

	triggerComposite := shape.multiModal || shape.hasGap || !haveAny
	if haveAny && best.KSDistance > 1.5*cfg.KSThresholdParametric {
		triggerComposite = true
	}

	if triggerComposite && cfg.MixtureFitter != nil {
		compositeThreshold := cfg.KSThresholdComposite
		if shape.hasGap {
			compositeThreshold *= 1.5
		}

		if model, ok := fitComposite(cfg, dim, samples, compositeThreshold, &best, &haveAny, &lastErr); ok {
			return model, nil
		}
	}

	state = stateFitEmpirical

	if cfg.HistogramEnabled && hist != nil {
		empirical := empiricalFromHistogram(hist, samples, shape.modeCount, cfg.GoodnessOfFit)

		if !haveAny {
			return empirical, nil
		}

		if empirical.KSDistance+EmpiricalPenalty < best.KSDistance {
			return empirical, nil
		}

		return best, nil
	}

	state = stateAccept

	if haveAny {
		return best, nil
	}

	if lastErr != nil {
		return ScalarModel{}, fmt.Errorf("model: dimension %d fit chain (last state %s) exhausted every fitter: %w", dim, state, lastErr)
	}

	return ScalarModel{}, fmt.Errorf("model: dimension %d has no registered fitters and histogram disabled", dim)
}

func fitParametric(cfg Config, samples []float64, best *ScalarModel, haveAny *bool, lastErr *error) (ScalarModel, bool) {
	for _, fitter := range cfg.Fitters {
		candidate, ks, err := fitter.Fit(samples)
		if err != nil {
			*lastErr = err

			continue
		}

		candidate.KSDistance = ks
		candidate.ModeCount = 1

		if ks <= cfg.KSThresholdParametric && verifyParametric(cfg, fitter, candidate) {
			return candidate, true
		}

		if !*haveAny || better(candidate, *best) {
			*best = candidate
			*haveAny = true
		}
	}

	return ScalarModel{}, false
}

func verifyParametric(cfg Config, fitter ComponentFitter, candidate ScalarModel) bool {
	if !cfg.InternalVerification || cfg.Sampler == nil || cfg.GoodnessOfFit == nil {
		return true
	}

	verifySamples, err := cfg.Sampler.Sample(candidate, cfg.BaseSeed, cfg.VerificationSamples)
	if err != nil {
		// Verification collaborator failing is swallowed: the fit chain
		// proceeds treating the candidate as accepted rather than erroring
		// the whole dimension over an optional diagnostic step.
		return true
	}

	roundTrip := cfg.GoodnessOfFit.Distance(verifySamples, func(x float64) float64 { return fitter.CDF(candidate, x) })

	return roundTrip <= cfg.KSThresholdParametric
}

func fitComposite(cfg Config, dim int, samples []float64, threshold float64, best *ScalarModel, haveAny *bool, lastErr *error) (ScalarModel, bool) {
	for k := 2; k <= cfg.MaxComponents; k++ {
		components, ks, err := cfg.MixtureFitter.FitMixture(samples, k, cfg.ClusteringStrategy)
		if err != nil {
			*lastErr = fmt.Errorf("dimension %d: mixture fit k=%d: %w", dim, k, err)

			continue
		}

		candidate, err := NewComposite(components, cfg.ClusteringStrategy, ks)
		if err != nil {
			*lastErr = err

			continue
		}

		if ks <= threshold {
			return candidate, true
		}

		if !*haveAny || better(candidate, *best) {
			*best = candidate
			*haveAny = true
		}
	}

	return ScalarModel{}, false
}

func empiricalFromHistogram(hist *stats.Histogram, samples []float64, modeCount int, gof GoodnessOfFitEvaluator) ScalarModel {
	counts := hist.Counts()
	minB, maxB := hist.Bounds()

	edges := make([]float64, len(counts)+1)
	width := (maxB - minB) / float64(len(counts))

	for i := range edges {
		edges[i] = minB + float64(i)*width
	}

	var ks float64
	if gof != nil && len(samples) > 0 {
		ks = gof.Distance(samples, func(x float64) float64 { return empiricalCDF(edges, counts, x) })
	}

	if modeCount < 1 {
		modeCount = 1
	}

	return NewEmpirical(edges, counts, ks, modeCount)
}
