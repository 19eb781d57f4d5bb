// Package vserrors defines the tagged error kinds shared across the vector
// space model pipeline, and the helpers used to classify and wrap them.
package vserrors

import "errors"

// Sentinel error kinds. Every fatal or semi-fatal condition in the pipeline
// wraps one of these with fmt.Errorf("...: %w", ...) so callers can classify
// failures with errors.Is without parsing message text.
var (
	// ErrInvalidConfig marks a precondition violated at construction time
	// (negative dimensions, a threshold out of range, zero overhead).
	ErrInvalidConfig = errors.New("invalid config")

	// ErrNoData marks an empty input, or a first chunk empty when not allowed.
	ErrNoData = errors.New("no data")

	// ErrDimensionMismatch marks a vector with the wrong dimension appearing
	// in a multi-file stream.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrTransport marks a network/IO failure. Retried per the transport's
	// policy; becomes fatal once the retry budget is exhausted.
	ErrTransport = errors.New("transport error")

	// ErrIntegrity marks a Merkle verification mismatch. Treated as a
	// transient retry; fatal if it repeats across every attempt.
	ErrIntegrity = errors.New("integrity error")

	// ErrAnalyzer marks a failure raised from an analyzer's Initialize,
	// Accept, or Complete. Recorded per-analyzer unless fail-fast is set.
	ErrAnalyzer = errors.New("analyzer error")

	// ErrCancelled marks a cooperative stop requested mid-run.
	ErrCancelled = errors.New("cancelled")
)

// Kind identifies which sentinel an error wraps, for callers that want to
// switch on error category (e.g. telemetry labeling) without a chain of
// errors.Is calls.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidConfig
	KindNoData
	KindDimensionMismatch
	KindTransport
	KindIntegrity
	KindAnalyzer
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindNoData:
		return "NoData"
	case KindDimensionMismatch:
		return "DimensionMismatch"
	case KindTransport:
		return "TransportError"
	case KindIntegrity:
		return "IntegrityError"
	case KindAnalyzer:
		return "AnalyzerError"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

var sentinelsByKind = []struct {
	kind Kind
	err  error
}{
	{KindInvalidConfig, ErrInvalidConfig},
	{KindNoData, ErrNoData},
	{KindDimensionMismatch, ErrDimensionMismatch},
	{KindTransport, ErrTransport},
	{KindIntegrity, ErrIntegrity},
	{KindAnalyzer, ErrAnalyzer},
	{KindCancelled, ErrCancelled},
}

// Classify returns the Kind of the first matching sentinel in err's chain,
// or KindUnknown if none match.
func Classify(err error) Kind {
	for _, s := range sentinelsByKind {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}

	return KindUnknown
}

// Retryable reports whether err's kind is one the transport layer should
// retry rather than surface immediately.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindTransport, KindIntegrity:
		return true
	default:
		return false
	}
}
