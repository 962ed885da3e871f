package audit

import (
	"context"
	"errors"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/service"
)

// Fanout delivers each event to every sink and joins their errors.
type Fanout []service.AuditService

// LogEvent writes to all sinks even when an earlier one fails.
func (f Fanout) LogEvent(ctx context.Context, event models.AuditEvent) error {
	var errs []error
	for _, sink := range f {
		if err := sink.LogEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop discards events.
type Noop struct{}

func (Noop) LogEvent(context.Context, models.AuditEvent) error { return nil }
