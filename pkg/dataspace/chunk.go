package dataspace

import (
	"fmt"

	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// Chunk is a rectangular slice of 32-bit floats with a declared layout and
// the ordinal of its first vector in the dataset. In RowMajor, rows are
// vectors and cols are dimensions; in Columnar, rows are dimensions and
// cols are vectors. The last chunk of a stream may have fewer vectors but
// never fewer dimensions.
type Chunk struct {
	Layout     Layout
	StartIndex uint64
	Rows       int
	Cols       int
	Data       []float32 // row-major storage of the Rows x Cols matrix
}

// NewChunk allocates a zeroed chunk of the given layout and shape.
func NewChunk(layout Layout, startIndex uint64, rows, cols int) Chunk {
	return Chunk{
		Layout:     layout,
		StartIndex: startIndex,
		Rows:       rows,
		Cols:       cols,
		Data:       make([]float32, rows*cols),
	}
}

// VectorCount returns the number of vectors represented by the chunk,
// regardless of layout.
func (c Chunk) VectorCount() int {
	if c.Layout == RowMajor {
		return c.Rows
	}

	return c.Cols
}

// DimensionCount returns the number of dimensions represented by the
// chunk, regardless of layout.
func (c Chunk) DimensionCount() int {
	if c.Layout == RowMajor {
		return c.Cols
	}

	return c.Rows
}

func (c Chunk) index(row, col int) int { return row*c.Cols + col }

// GetValue returns the value for vector v, dimension d, independent of
// the chunk's physical layout.
func (c Chunk) GetValue(v, d int) float32 {
	if c.Layout == RowMajor {
		return c.Data[c.index(v, d)]
	}

	return c.Data[c.index(d, v)]
}

// SetValue writes the value for vector v, dimension d, independent of the
// chunk's physical layout.
func (c Chunk) SetValue(v, d int, x float32) {
	if c.Layout == RowMajor {
		c.Data[c.index(v, d)] = x
	} else {
		c.Data[c.index(d, v)] = x
	}
}

// GetVector returns a freshly allocated copy of vector v's D values.
func (c Chunk) GetVector(v int) []float32 {
	d := c.DimensionCount()
	out := make([]float32, d)

	for i := range out {
		out[i] = c.GetValue(v, i)
	}

	return out
}

// GetDimensionValues returns a freshly allocated copy of dimension d's
// values across every vector in the chunk.
func (c Chunk) GetDimensionValues(d int) []float32 {
	n := c.VectorCount()
	out := make([]float32, n)

	for i := range out {
		out[i] = c.GetValue(i, d)
	}

	return out
}

// ToColumnar returns a chunk with Columnar layout holding the same values.
// If c is already Columnar, the same underlying buffer is returned
// (zero-copy); otherwise a transpose is materialized.
func (c Chunk) ToColumnar() Chunk {
	if c.Layout == Columnar {
		return c
	}

	return c.transpose(Columnar)
}

// ToRowMajor returns a chunk with RowMajor layout holding the same values.
// If c is already RowMajor, the same underlying buffer is returned
// (zero-copy); otherwise a transpose is materialized.
func (c Chunk) ToRowMajor() Chunk {
	if c.Layout == RowMajor {
		return c
	}

	return c.transpose(RowMajor)
}

func (c Chunk) transpose(target Layout) Chunk {
	vectors := c.VectorCount()
	dims := c.DimensionCount()

	out := Chunk{
		Layout:     target,
		StartIndex: c.StartIndex,
	}

	if target == RowMajor {
		out.Rows, out.Cols = vectors, dims
	} else {
		out.Rows, out.Cols = dims, vectors
	}

	out.Data = make([]float32, vectors*dims)

	for v := 0; v < vectors; v++ {
		for d := 0; d < dims; d++ {
			out.SetValue(v, d, c.GetValue(v, d))
		}
	}

	return out
}

// Validate checks the rectangular invariants a Chunk must satisfy given the
// dataset's declared shape.
func (c Chunk) Validate(shape Shape) error {
	if c.DimensionCount() != int(shape.Dimensionality) {
		return fmt.Errorf("dataspace: chunk has %d dimensions, shape declares %d: %w",
			c.DimensionCount(), shape.Dimensionality, vserrors.ErrInvalidConfig)
	}

	if c.VectorCount() == 0 {
		return fmt.Errorf("dataspace: empty chunk: %w", vserrors.ErrNoData)
	}

	return nil
}
