// Package application wires use cases (command and query handlers) to the
// domain. Shared plumbing for handlers lives here.
package application

import (
	"context"
	"log/slog"

	"github.com/stepup/gradebook/internal/domain/shared"
	"github.com/stepup/gradebook/internal/infrastructure/observability"
	"github.com/stepup/gradebook/pkg/logger"
)

// Instrumentation bundles the logger, tracer and metrics a handler reports to.
// The zero value is usable.
type Instrumentation struct {
	Logger  *slog.Logger
	Tracer  *observability.Tracer
	Metrics *observability.Metrics
}

// WithDefaults fills missing fields. Metrics stay nil (no-op).
func (i Instrumentation) WithDefaults() Instrumentation {
	if i.Logger == nil {
		i.Logger = slog.Default()
	}
	if i.Tracer == nil {
		i.Tracer = observability.NewTracer()
	}
	return i
}

// Log returns the request-scoped logger when ctx carries one, else the
// handler's logger.
func (i Instrumentation) Log(ctx context.Context) *slog.Logger {
	if l := logger.FromContext(ctx); l != slog.Default() {
		return l
	}
	return i.Logger
}

// Publish sends an event and logs, never returns, a failure.
func (i Instrumentation) Publish(ctx context.Context, publisher shared.EventPublisher, event shared.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(event); err != nil {
		i.Log(ctx).Warn("failed to publish event",
			"event_type", string(event.EventType()),
			logger.Err(err),
		)
	}
}
