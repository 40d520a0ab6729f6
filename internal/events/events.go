// Package events defines the engine's collaborator-facing signals and a small
// in-process bus. One canonical event per logical signal; adapters that need
// legacy names fan out on their side.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"stocktake/internal/domain"
)

// Event is implemented by every signal the engine emits.
type Event interface {
	EventName() string
}

// SessionChanged fires whenever the active session starts, mutates, or ends.
// Active=false with a zero SessionID means no session is active.
type SessionChanged struct {
	SessionID  string
	Name       string
	Mode       string
	OperatorID string
	Active     bool
}

func (SessionChanged) EventName() string { return "session.changed" }

// AuditRecorded fires once per successful audit write.
type AuditRecorded struct {
	ItemID   string
	ItemType domain.ItemType
	Date     string
}

func (AuditRecorded) EventName() string { return "audit.recorded" }

// BulkAuditProgress fires after every item of a sequential bulk run.
type BulkAuditProgress struct {
	Total   int
	Done    int
	Success int
	Failed  int
}

func (BulkAuditProgress) EventName() string { return "bulk.progress" }

// BulkAuditCompleted fires exactly once per bulk run.
type BulkAuditCompleted struct {
	Count       int
	FailedCount int
}

func (BulkAuditCompleted) EventName() string { return "bulk.completed" }

// Severity grades a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is the single user-visible message per terminal outcome.
type Notification struct {
	ID       string
	Message  string
	Severity Severity
	At       time.Time
}

func (Notification) EventName() string { return "notification" }

// NewNotification stamps id and time so emit sites stay one-liners.
func NewNotification(message string, severity Severity) Notification {
	return Notification{
		ID:       uuid.NewString(),
		Message:  message,
		Severity: severity,
		At:       time.Now(),
	}
}

// Handler receives published events.
type Handler func(Event)

// Bus dispatches events synchronously to subscribers in registration order.
// Dispatch happens on the publishing goroutine, which keeps ordering aligned
// with the engine's serialized write path.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish fans the event out to every subscriber. Nil bus is a no-op so
// components can run unobserved in tests.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}
