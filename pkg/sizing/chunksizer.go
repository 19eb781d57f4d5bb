// Package sizing computes memory-safe chunk cardinalities and classifies
// current memory pressure, adapted from the
// streaming.Planner/streaming.Detector chunk-boundary math (there driven by
// commit counts and a fixed per-commit growth estimate) to vectors sized by
// dimension and a configurable overhead factor.
package sizing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// Bounds on the cardinality ChunkSizer will ever return, mirroring the
// Planner MinChunkSize/MaxChunkSize clamp pattern.
const (
	MinChunkSize = 1000
	MaxChunkSize = 500_000

	bytesPerFloat32 = 4

	// DefaultBudgetFraction is the fraction of available heap/RAM a chunk
	// may consume absent an explicit byte budget.
	DefaultBudgetFraction = 0.6

	// DefaultOverheadFactor accounts for transient copies (layout
	// transposition, per-analyzer scratch buffers) during chunk processing.
	DefaultOverheadFactor = 1.2
)

// ChunkSizer computes a chunk cardinality that
// dimension * chunk_size * 4 bytes * overhead_factor fits within
// budget_fraction * available_heap (or an explicit byte budget), clamped to
// [MinChunkSize, MaxChunkSize].
type ChunkSizer struct {
	BudgetFraction float64
	BudgetBytes    int64 // overrides BudgetFraction when > 0
	OverheadFactor float64
}

// NewChunkSizer builds a ChunkSizer with recommended defaults.
func NewChunkSizer() ChunkSizer {
	return ChunkSizer{
		BudgetFraction: DefaultBudgetFraction,
		OverheadFactor: DefaultOverheadFactor,
	}
}

// Validate rejects configurations that would produce a nonsensical chunk size.
func (s ChunkSizer) Validate(dimension int) error {
	if dimension < 0 {
		return fmt.Errorf("sizing: negative dimension %d: %w", dimension, vserrors.ErrInvalidConfig)
	}

	if s.OverheadFactor <= 0 {
		return fmt.Errorf("sizing: overhead factor must be > 0, got %f: %w", s.OverheadFactor, vserrors.ErrInvalidConfig)
	}

	if s.BudgetBytes == 0 && (s.BudgetFraction <= 0 || s.BudgetFraction > 1) {
		return fmt.Errorf("sizing: budget fraction must be in (0,1], got %f: %w", s.BudgetFraction, vserrors.ErrInvalidConfig)
	}

	return nil
}

// ChunkSize returns the chunk cardinality for the given dimension and
// available heap/RAM bytes (ignored when BudgetBytes overrides it).
func (s ChunkSizer) ChunkSize(dimension int, availableBytes int64) (int, error) {
	if err := s.Validate(dimension); err != nil {
		return 0, err
	}

	budget := s.BudgetBytes
	if budget <= 0 {
		budget = int64(float64(availableBytes) * s.BudgetFraction)
	}

	perVectorCost := float64(dimension) * bytesPerFloat32 * s.OverheadFactor
	if perVectorCost <= 0 {
		return MinChunkSize, nil
	}

	size := int(float64(budget) / perVectorCost)

	if size < MinChunkSize {
		size = MinChunkSize
	}

	if size > MaxChunkSize {
		size = MaxChunkSize
	}

	return size, nil
}

// ParseSize parses an absolute size ("4g", "512m", "1024k") or a fraction
// string ("0.6") into either an explicit byte budget or a budget fraction.
// Exactly one of the two return values is non-zero.
func ParseSize(spec string) (bytesBudget int64, fraction float64, err error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return 0, 0, fmt.Errorf("sizing: empty size spec: %w", vserrors.ErrInvalidConfig)
	}

	if f, ferr := strconv.ParseFloat(trimmed, 64); ferr == nil && !strings.ContainsAny(trimmed, "kKmMgGbB") {
		if f <= 0 || f > 1 {
			return 0, 0, fmt.Errorf("sizing: fraction %q must be in (0,1]: %w", spec, vserrors.ErrInvalidConfig)
		}

		return 0, f, nil
	}

	n, perr := humanize.ParseBytes(normalizeSizeSuffix(trimmed))
	if perr != nil {
		return 0, 0, fmt.Errorf("sizing: invalid size spec %q: %w: %w", spec, perr, vserrors.ErrInvalidConfig)
	}

	return int64(n), 0, nil
}

// normalizeSizeSuffix uppercases a trailing single-letter size suffix
// ("4g" becomes "4G", "512m" becomes "512M"), a form humanize.ParseBytes
// recognizes.
func normalizeSizeSuffix(s string) string {
	if s == "" {
		return s
	}

	last := s[len(s)-1]

	switch last {
	case 'g', 'G', 'm', 'M', 'k', 'K':
		// Already ends with a digit+letter that's ambiguous between
		// "gigabytes" and "GB" shorthand; humanize accepts both "4G" and
		// "4GB", so just uppercase the suffix letter.
		return s[:len(s)-1] + strings.ToUpper(string(last))
	default:
		return s
	}
}
