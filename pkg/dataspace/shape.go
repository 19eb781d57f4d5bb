// Package dataspace defines the shape and layout types shared by every
// stage of the analysis pipeline: the dataset shape, the chunk type, and
// the two concrete layouts a chunk can be stored in.
package dataspace

import (
	"fmt"

	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// Layout identifies how a Chunk's 2-D buffer is arranged.
type Layout int

const (
	// RowMajor stores [vector][dimension]: rows are vectors.
	RowMajor Layout = iota
	// Columnar stores [dimension][vector]: rows are dimensions.
	Columnar
)

func (l Layout) String() string {
	switch l {
	case RowMajor:
		return "ROW_MAJOR"
	case Columnar:
		return "COLUMNAR"
	default:
		return "UNKNOWN"
	}
}

// Shape describes a dataset's cardinality, dimensionality, and declared
// layout. It is immutable and carried unchanged through the pipeline.
type Shape struct {
	Cardinality   uint64
	Dimensionality uint32
	Layout        Layout
}

// Validate checks the invariants a Shape must satisfy.
func (s Shape) Validate() error {
	if s.Dimensionality == 0 {
		return fmt.Errorf("dataspace: dimensionality must be > 0: %w", vserrors.ErrInvalidConfig)
	}

	return nil
}
