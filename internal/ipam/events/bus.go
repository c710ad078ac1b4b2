package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/event"

	applogger "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/logger"
)

// AuditEvent is the payload delivered to subscribers for every mutating
// ledger operation.
type AuditEvent struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// Handler processes one audit event. Returning an error only logs it; it
// never propagates back to the operation that fired the event.
type Handler func(ctx context.Context, ev AuditEvent) error

// AuditBus wraps the gookit event manager for allocation audit events. It
// satisfies the ledger's EventSink: publishing is fire-and-forget and a
// failing subscriber never fails the operation.
type AuditBus struct {
	manager *event.Manager
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewAuditBus creates the audit event bus.
func NewAuditBus(logger *slog.Logger) *AuditBus {
	return &AuditBus{
		manager: event.NewManager("ipam-audit"),
		logger:  logger,
	}
}

// Publish fires an audit event to all subscribers of the given name.
func (b *AuditBus) Publish(ctx context.Context, name string, fields map[string]any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	payload := AuditEvent{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: time.Now().UTC(),
		RequestID: applogger.GetRequestID(ctx),
		Fields:    fields,
	}

	err, _ := b.manager.Fire(name, event.M{"payload": payload})
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to publish audit event",
			slog.String("event", name),
			slog.String("error", err.Error()))
	}
}

// Subscribe registers a handler for events with the given name.
func (b *AuditBus) Subscribe(name string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("audit bus is closed")
	}

	listener := event.ListenerFunc(func(e event.Event) error {
		payload, ok := e.Get("payload").(AuditEvent)
		if !ok {
			return fmt.Errorf("unexpected audit payload type %T", e.Get("payload"))
		}
		if err := handler(context.Background(), payload); err != nil {
			b.logger.Error("audit event handler failed",
				slog.String("event", payload.Name),
				slog.String("error", err.Error()))
		}
		return nil
	})

	b.manager.On(name, listener, event.Normal)
	return nil
}

// Close shuts down the bus; subsequent publishes are dropped silently.
func (b *AuditBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.manager.Clear()
	b.closed = true
	return nil
}
