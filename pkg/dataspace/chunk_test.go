package dataspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
)

func TestChunk_RowMajorAccessors(t *testing.T) {
	t.Parallel()

	c := dataspace.NewChunk(dataspace.RowMajor, 0, 2, 3)
	for v := 0; v < 2; v++ {
		for d := 0; d < 3; d++ {
			c.SetValue(v, d, float32(v*10+d))
		}
	}

	assert.Equal(t, 2, c.VectorCount())
	assert.Equal(t, 3, c.DimensionCount())
	assert.Equal(t, float32(12), c.GetValue(1, 2))
	assert.Equal(t, []float32{10, 11, 12}, c.GetVector(1))
	assert.Equal(t, []float32{1, 11}, c.GetDimensionValues(1))
}

func TestChunk_ToColumnarIsZeroCopyWhenAlreadyColumnar(t *testing.T) {
	t.Parallel()

	c := dataspace.NewChunk(dataspace.Columnar, 0, 3, 2)
	col := c.ToColumnar()

	// Same underlying slice header (zero-copy).
	require.Len(t, col.Data, len(c.Data))
	col.Data[0] = 42
	assert.Equal(t, float32(42), c.Data[0])
}

func TestChunk_TransposeRoundTrip(t *testing.T) {
	t.Parallel()

	rm := dataspace.NewChunk(dataspace.RowMajor, 5, 4, 3)
	for v := 0; v < 4; v++ {
		for d := 0; d < 3; d++ {
			rm.SetValue(v, d, float32(v*100+d))
		}
	}

	col := rm.ToColumnar()
	require.Equal(t, dataspace.Columnar, col.Layout)
	require.Equal(t, uint64(5), col.StartIndex)

	back := col.ToRowMajor()
	require.Equal(t, rm.Rows, back.Rows)
	require.Equal(t, rm.Cols, back.Cols)

	for v := 0; v < 4; v++ {
		for d := 0; d < 3; d++ {
			assert.Equal(t, rm.GetValue(v, d), back.GetValue(v, d), "v=%d d=%d", v, d)
		}
	}
}

func TestChunk_ValidateRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	shape := dataspace.Shape{Cardinality: 10, Dimensionality: 4, Layout: dataspace.RowMajor}
	c := dataspace.NewChunk(dataspace.RowMajor, 0, 2, 3)

	err := c.Validate(shape)
	require.Error(t, err)
}

func TestChunk_ValidateRejectsEmpty(t *testing.T) {
	t.Parallel()

	shape := dataspace.Shape{Cardinality: 10, Dimensionality: 3, Layout: dataspace.RowMajor}
	c := dataspace.NewChunk(dataspace.RowMajor, 0, 0, 3)

	err := c.Validate(shape)
	require.Error(t, err)
}

func TestShape_ValidateRejectsZeroDimension(t *testing.T) {
	t.Parallel()

	s := dataspace.Shape{Cardinality: 10, Dimensionality: 0}
	require.Error(t, s.Validate())
}
