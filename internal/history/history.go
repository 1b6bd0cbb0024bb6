// Package history exports mock server lifecycle events to external systems
// for audit. The in-memory registry stays authoritative; sinks are
// best-effort observers.
package history

import (
	"context"
	"time"

	"github.com/hostmock/hostmock/internal/mock"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStarted EventType = "started"
	EventStopped EventType = "stopped"
	EventCrashed EventType = "crashed"
	EventError   EventType = "error"
)

// Event is one lifecycle transition of a supervised mock server.
type Event struct {
	Type       EventType   `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Record     mock.Record `json:"record"`
}

// Sink is a destination for lifecycle events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
