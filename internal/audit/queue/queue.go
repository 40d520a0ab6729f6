// Package queue is the durable holding area for writes that exhausted their
// retries. Entries replay strictly in arrival order once connectivity comes
// back, so relative ordering of writes for the same item is preserved.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"stocktake/internal/domain"
	"stocktake/internal/platform/metrics"
	"stocktake/internal/remote"
)

// Kind selects the replay endpoint for an entry.
type Kind string

const (
	KindAudit      Kind = "AUDIT"
	KindLocation   Kind = "LOCATION"
	KindAuditBatch Kind = "AUDIT_BATCH"
)

// Entry is one parked write. Exactly one payload field is set, matching Kind.
type Entry struct {
	ID             string                       `json:"id"`
	Kind           Kind                         `json:"kind"`
	Audit          *domain.AuditRecord          `json:"audit,omitempty"`
	LocationChange *domain.LocationChangeRecord `json:"locationChange,omitempty"`
	Batch          *domain.BatchPayload         `json:"batch,omitempty"`
	QueuedAt       time.Time                    `json:"queuedAt"`
}

// NewAuditEntry wraps a single audit record for replay.
func NewAuditEntry(rec domain.AuditRecord) Entry {
	return Entry{Kind: KindAudit, Audit: &rec}
}

// NewLocationEntry wraps a standalone location change for replay.
func NewLocationEntry(rec domain.LocationChangeRecord) Entry {
	return Entry{Kind: KindLocation, LocationChange: &rec}
}

// NewBatchEntry wraps a combined payload so paired records replay together.
func NewBatchEntry(batch domain.BatchPayload) Entry {
	return Entry{Kind: KindAuditBatch, Batch: &batch}
}

// Store is the durable FIFO backing the queue.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Front(ctx context.Context) (Entry, bool, error)
	PopFront(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Entries(ctx context.Context) ([]Entry, error)
}

// FlushResult accounts for one flush attempt.
type FlushResult struct {
	Flushed   int `json:"flushed"`
	Remaining int `json:"remaining"`
}

// Queue is a bounded durable FIFO of failed writes. Capacity is a soft
// guarantee: on overflow the oldest entry is dropped to admit the new one.
type Queue struct {
	mu       sync.Mutex
	store    Store
	client   remote.Client
	capacity int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Queue.
type Option func(*Queue)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// New builds a queue over the given store, replaying through client.
func New(store Store, client remote.Client, opts ...Option) *Queue {
	q := &Queue{
		store:    store,
		client:   client,
		capacity: 250,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends the entry, stamping id and time. Oldest entries are dropped
// first when the queue is full.
func (q *Queue) Enqueue(ctx context.Context, e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e.ID = uuid.NewString()
	e.QueuedAt = time.Now()

	n, err := q.store.Len(ctx)
	if err != nil {
		return fmt.Errorf("queue length: %w", err)
	}
	for n >= q.capacity {
		if err := q.store.PopFront(ctx); err != nil {
			return fmt.Errorf("drop oldest: %w", err)
		}
		n--
		q.logger.Warn("offline queue full, dropped oldest entry", "capacity", q.capacity)
	}

	if err := q.store.Append(ctx, e); err != nil {
		return fmt.Errorf("queue append: %w", err)
	}
	q.metrics.SetQueueDepth(n + 1)
	q.logger.Info("queued write for later replay", "kind", e.Kind, "id", e.ID)
	return nil
}

// Flush replays entries strictly in order and stops at the first failure,
// whatever its cause, leaving the failed entry and everything after it
// queued. Replay order matters more than replay eagerness here.
func (q *Queue) Flush(ctx context.Context) (FlushResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var result FlushResult
	for {
		entry, ok, err := q.store.Front(ctx)
		if err != nil {
			return result, fmt.Errorf("queue front: %w", err)
		}
		if !ok {
			break
		}

		if err := q.submit(ctx, entry); err != nil {
			q.logger.Info("flush halted, keeping order",
				"kind", entry.Kind, "id", entry.ID, "error", err)
			break
		}

		if err := q.store.PopFront(ctx); err != nil {
			return result, fmt.Errorf("queue pop: %w", err)
		}
		result.Flushed++
	}

	remaining, err := q.store.Len(ctx)
	if err != nil {
		return result, fmt.Errorf("queue length: %w", err)
	}
	result.Remaining = remaining

	q.metrics.AddQueueFlushed(result.Flushed)
	q.metrics.SetQueueDepth(remaining)
	if result.Flushed > 0 {
		q.logger.Info("offline queue flushed", "flushed", result.Flushed, "remaining", remaining)
	}
	return result, nil
}

func (q *Queue) submit(ctx context.Context, e Entry) error {
	switch e.Kind {
	case KindAudit:
		if e.Audit == nil {
			return fmt.Errorf("audit entry %s missing payload", e.ID)
		}
		return q.client.SubmitAudit(ctx, *e.Audit)
	case KindLocation:
		if e.LocationChange == nil {
			return fmt.Errorf("location entry %s missing payload", e.ID)
		}
		return q.client.SubmitLocationChange(ctx, *e.LocationChange)
	case KindAuditBatch:
		if e.Batch == nil {
			return fmt.Errorf("batch entry %s missing payload", e.ID)
		}
		_, err := q.client.SubmitAuditBatch(ctx, *e.Batch)
		return err
	default:
		return fmt.Errorf("unknown queue kind %q", e.Kind)
	}
}

// Pending returns a copy of all queued entries, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]Entry, error) {
	return q.store.Entries(ctx)
}

// Len returns the current queue depth.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.store.Len(ctx)
}
