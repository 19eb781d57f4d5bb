// Package model implements the per-dimension adaptive fit chain that turns
// streaming statistics into a ScalarModel, and the harness.StreamingAnalyzer
// (Extractor) that drives it. It generalizes the
// pkg/analyzers/analyze.Factory registration-and-dispatch pattern
// (pkg/analyzers/analyze/analyzer.go) from running named AST analyzers over
// a parsed tree to fitting a distribution per dimension over a streamed
// dataset.
package model

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the three ScalarModel variants.
type Kind int

const (
	KindParametric Kind = iota
	KindComposite
	KindEmpirical
)

func (k Kind) String() string {
	switch k {
	case KindComposite:
		return "composite"
	case KindEmpirical:
		return "empirical"
	default:
		return "parametric"
	}
}

// ClusteringStrategy selects how a composite fit partitions samples into
// components before per-component parametric fitting.
type ClusteringStrategy int

const (
	ClusteringHard ClusteringStrategy = iota
	ClusteringEM
)

func (c ClusteringStrategy) String() string {
	if c == ClusteringEM {
		return "EM"
	}

	return "HARD"
}

// Component is one weighted sub-model of a Composite fit.
type Component struct {
	Weight float64     `json:"weight"`
	Model  ScalarModel `json:"model"`
}

// ScalarModel is the tagged sum type {Parametric, Composite, Empirical}
// describing a single dimension's fitted distribution. Exactly one of the
// Parametric*/Composite*/Empirical* field groups is populated, selected by
// Kind; this mirrors the polymorphic result-type hierarchy pattern used in
// domain was redesigned away from (see the REDESIGN FLAGS the fit chain in
// fitchain.go follows) into a single flat struct with one sample/cdf/bytes
// contract.
type ScalarModel struct {
	Kind Kind `json:"kind"`

	// Populated when Kind == KindParametric.
	ParametricName   string          `json:"parametric_name,omitempty"`
	ParametricParams json.RawMessage `json:"parametric_params,omitempty"`

	// Populated when Kind == KindComposite. Weights sum to 1; a composite
	// with exactly one component is equivalent to wrapping a single
	// parametric fit.
	Components         []Component        `json:"components,omitempty"`
	ClusteringStrategy ClusteringStrategy `json:"clustering_strategy,omitempty"`

	// Populated when Kind == KindEmpirical.
	EmpiricalBinEdges  []float64 `json:"empirical_bin_edges,omitempty"`
	EmpiricalBinCounts []uint64  `json:"empirical_bin_counts,omitempty"`

	// KSDistance is the goodness-of-fit score that selected this model,
	// carried along for diagnostics and manifest round-trips.
	KSDistance float64 `json:"ks_distance"`
	ModeCount  int     `json:"mode_count"`
}

// NewParametric wraps a named parametric fit and its serialized parameters.
func NewParametric(name string, params json.RawMessage, ks float64) ScalarModel {
	return ScalarModel{Kind: KindParametric, ParametricName: name, ParametricParams: params, KSDistance: ks, ModeCount: 1}
}

// NewComposite wraps a mixture of weighted sub-models. An empty slice
// collapses to an empirical fallback is the caller's responsibility; this
// constructor requires at least one component.
func NewComposite(components []Component, strategy ClusteringStrategy, ks float64) (ScalarModel, error) {
	if len(components) == 0 {
		return ScalarModel{}, fmt.Errorf("model: composite requires at least one component")
	}

	var sum float64
	for _, c := range components {
		sum += c.Weight
	}

	const tolerance = 1e-6
	if sum < 1-tolerance || sum > 1+tolerance {
		return ScalarModel{}, fmt.Errorf("model: composite weights sum to %f, want 1", sum)
	}

	return ScalarModel{
		Kind:               KindComposite,
		Components:         components,
		ClusteringStrategy: strategy,
		KSDistance:         ks,
		ModeCount:          len(components),
	}, nil
}

// NewEmpirical wraps a histogram-derived CDF.
func NewEmpirical(binEdges []float64, binCounts []uint64, ks float64, modeCount int) ScalarModel {
	return ScalarModel{
		Kind:               KindEmpirical,
		EmpiricalBinEdges:  binEdges,
		EmpiricalBinCounts: binCounts,
		KSDistance:         ks,
		ModeCount:          modeCount,
	}
}

// CDF evaluates the model's cumulative distribution at x. Parametric CDFs
// are delegated to the ComponentFitter that produced them via Parameters()
// round-trip is not attempted here; CDF on a parametric ScalarModel outside
// of the fitter that created it is therefore only meaningful for Composite
// and Empirical kinds, which this package can evaluate directly.
func (s ScalarModel) CDF(x float64) float64 {
	switch s.Kind {
	case KindComposite:
		var sum float64
		for _, c := range s.Components {
			sum += c.Weight * c.Model.CDF(x)
		}

		return sum
	case KindEmpirical:
		return empiricalCDF(s.EmpiricalBinEdges, s.EmpiricalBinCounts, x)
	default:
		return 0
	}
}

func empiricalCDF(edges []float64, counts []uint64, x float64) float64 {
	if len(counts) == 0 {
		return 0
	}

	var total, cumulative uint64

	for _, c := range counts {
		total += c
	}

	if total == 0 {
		return 0
	}

	for i, c := range counts {
		if i+1 < len(edges) && x < edges[i+1] {
			break
		}

		cumulative += c
	}

	return float64(cumulative) / float64(total)
}

// Equal reports structural equality, the contract a serialize/parse round
// trip must satisfy.
func (s ScalarModel) Equal(other ScalarModel) bool {
	a, errA := json.Marshal(s)
	b, errB := json.Marshal(other)

	if errA != nil || errB != nil {
		return false
	}

	return string(a) == string(b)
}
