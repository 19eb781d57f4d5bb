package model_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
	"github.com/nosqlbench/vsmodel/pkg/model"
)

func sampleManifest() *model.VectorSpaceModel {
	return &model.VectorSpaceModel{
		UniqueVectors: 1000,
		Shape:         dataspace.Shape{Cardinality: 1000, Dimensionality: 4, Layout: dataspace.Columnar},
		PerDimModels: []model.ScalarModel{
			model.NewParametric("normal", []byte(`{"mean":0,"stdev":1}`), 0.01),
			model.NewEmpirical([]float64{0, 1, 2}, []uint64{5, 5}, 0.1, 2),
		},
		GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestVectorSpaceModel_ValidatesAgainstEmbeddedSchema(t *testing.T) {
	t.Parallel()

	m := sampleManifest()
	require.NoError(t, m.Validate())
}

func TestVectorSpaceModel_SaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	m := sampleManifest()
	path := filepath.Join(t.TempDir(), "model.json")

	require.NoError(t, m.Save(path))

	loaded, err := model.LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, m.UniqueVectors, loaded.UniqueVectors)
	assert.Equal(t, m.Shape, loaded.Shape)
	assert.Len(t, loaded.PerDimModels, 2)
}

func TestVectorSpaceModel_LoadRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := model.LoadManifest(path)
	require.Error(t, err)
}
