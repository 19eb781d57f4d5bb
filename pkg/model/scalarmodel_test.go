package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlbench/vsmodel/pkg/model"
)

func TestNewComposite_RejectsWeightsNotSummingToOne(t *testing.T) {
	t.Parallel()

	_, err := model.NewComposite([]model.Component{
		{Weight: 0.3, Model: model.NewParametric("normal", nil, 0.01)},
		{Weight: 0.3, Model: model.NewParametric("normal", nil, 0.01)},
	}, model.ClusteringHard, 0.02)
	require.Error(t, err)
}

func TestNewComposite_AcceptsWeightsSummingToOne(t *testing.T) {
	t.Parallel()

	m, err := model.NewComposite([]model.Component{
		{Weight: 0.5, Model: model.NewParametric("normal", nil, 0.01)},
		{Weight: 0.5, Model: model.NewParametric("normal", nil, 0.01)},
	}, model.ClusteringHard, 0.02)
	require.NoError(t, err)
	assert.Equal(t, 2, m.ModeCount)
}

func TestScalarModel_EqualAfterJSONRoundTrip(t *testing.T) {
	t.Parallel()

	original := model.NewEmpirical([]float64{0, 1, 2}, []uint64{5, 7}, 0.04, 2)

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var parsed model.ScalarModel
	require.NoError(t, json.Unmarshal(raw, &parsed))

	assert.True(t, original.Equal(parsed))
}

func TestScalarModel_CompositeCDFIsWeightedSumOfComponents(t *testing.T) {
	t.Parallel()

	emp1 := model.NewEmpirical([]float64{0, 1, 2}, []uint64{10, 0}, 0, 1)
	emp2 := model.NewEmpirical([]float64{0, 1, 2}, []uint64{0, 10}, 0, 1)

	composite, err := model.NewComposite([]model.Component{
		{Weight: 0.5, Model: emp1},
		{Weight: 0.5, Model: emp2},
	}, model.ClusteringHard, 0.01)
	require.NoError(t, err)

	cdf := composite.CDF(1.5)
	assert.InDelta(t, 0.5, cdf, 1e-9)
}
