package query

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/infrastructure/observability"
)

// endSpan closes a query span; a missing student is not a span error.
func endSpan(span trace.Span, err error) {
	if err != nil && (shared.IsValidation(err) || shared.IsNotFound(err)) {
		err = nil
	}
	observability.EndSpan(span, err)
}
