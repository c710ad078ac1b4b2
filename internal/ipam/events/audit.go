package events

import (
	"context"
	"log/slog"
)

// RegisterAuditLogger subscribes a handler that mirrors every named event
// into the structured log, giving a durable audit trail without a separate
// store.
func RegisterAuditLogger(bus *AuditBus, logger *slog.Logger, names ...string) error {
	handler := func(_ context.Context, ev AuditEvent) error {
		attrs := []any{
			slog.String("event_id", ev.ID),
			slog.Time("event_time", ev.Timestamp),
		}
		if ev.RequestID != "" {
			attrs = append(attrs, slog.String("request_id", ev.RequestID))
		}
		for k, v := range ev.Fields {
			attrs = append(attrs, slog.Any(k, v))
		}

		logger.Info("audit: "+ev.Name, attrs...)
		return nil
	}

	for _, name := range names {
		if err := bus.Subscribe(name, handler); err != nil {
			return err
		}
	}
	return nil
}
