package obs

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error type classification constants, mirroring OTel semantic conventions.
const (
	ErrTypeTransport  = "transport"
	ErrTypeIntegrity  = "integrity"
	ErrTypeAnalyzer   = "analyzer"
	ErrTypeCancel     = "cancel"
	ErrTypeValidation = "validation"
	ErrTypeInternal   = "internal"
)

// RecordSpanError records err on span and sets the span's status to Error.
func RecordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSpanErrorTyped is RecordSpanError plus a structured error.type
// attribute, for callers that have already classified the failure (e.g. via
// vserrors.Classify).
func RecordSpanErrorTyped(span trace.Span, err error, errType string) {
	RecordSpanError(span, err)
	span.SetAttributes(attribute.String("error.type", errType))
}
