// Package audit implements the write path for physical-inventory audits:
// single writes with retry and offline fallback, combined relocate-and-audit
// transactions, and paced bulk runs.
//
// All writes for a process are serialized through one pipeline. Delivery to
// the system of record is at-least-once; the remote appends rather than
// deduplicates.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stocktake/internal/audit/archive"
	"stocktake/internal/audit/queue"
	"stocktake/internal/domain"
	"stocktake/internal/events"
	"stocktake/internal/platform/metrics"
	"stocktake/internal/remote"
	"stocktake/internal/selection"
	"stocktake/internal/session"
	dErrors "stocktake/pkg/domain-errors"
)

// Outcome is the terminal result of one write operation. Queued means the
// write is parked for replay: recoverable and user-visible, not a failure.
type Outcome struct {
	Success bool   `json:"success"`
	Queued  bool   `json:"queued"`
	Err     error  `json:"-"`
	Error   string `json:"error,omitempty"`
}

func outcomeErr(err error) Outcome {
	return Outcome{Err: err, Error: err.Error()}
}

// SingleOptions tunes one audit write.
type SingleOptions struct {
	// OperatorID overrides the active session's operator.
	OperatorID string
	// AuditDate overrides the calendar date derived from the clock
	// (format 2006-01-02).
	AuditDate string
	Notes     string
	AuditType domain.AuditType
}

// RelocateOptions tunes a combined relocate-and-audit transaction.
type RelocateOptions struct {
	OperatorID     string
	OldRackLayerID string
	Notes          string
	// SkipAudit moves the item without recording an audit. The default
	// pairs every relocation with an audit.
	SkipAudit bool
}

// Pipeline performs audit writes against the system of record with retry,
// backoff, and offline-queue fallback.
type Pipeline struct {
	mu sync.Mutex // single serialized write path

	client    remote.Client
	queue     *queue.Queue
	archive   archive.Store
	sessions  *session.Manager
	selection *selection.Set
	conn      *remote.Connectivity
	bus       *events.Bus
	logger    *slog.Logger
	metrics   *metrics.Metrics

	maxRetry    int
	backoffStep time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration)
}

// Option configures the Pipeline.
type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithBus(bus *events.Bus) Option {
	return func(p *Pipeline) { p.bus = bus }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithSelection(set *selection.Set) Option {
	return func(p *Pipeline) { p.selection = set }
}

func WithMaxRetry(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxRetry = n
		}
	}
}

func WithBackoffStep(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.backoffStep = d
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline builds the write pipeline.
func NewPipeline(client remote.Client, q *queue.Queue, arch archive.Store, sessions *session.Manager, conn *remote.Connectivity, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:      client,
		queue:       q,
		archive:     arch,
		sessions:    sessions,
		conn:        conn,
		logger:      slog.Default(),
		maxRetry:    3,
		backoffStep: 400 * time.Millisecond,
		now:         time.Now,
	}
	p.sleep = func(ctx context.Context, d time.Duration) {
		if d <= 0 {
			return
		}
		select {
		case <-ctx.Done():
		case <-time.After(d):
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuditSingle records one audit for an item. Terminal outcomes each emit
// exactly one Notification.
func (p *Pipeline) AuditSingle(ctx context.Context, itemID string, itemType domain.ItemType, opts SingleOptions) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auditOne(ctx, itemID, itemType, opts, true)
}

// auditOne is the unguarded write path shared with the bulk coordinator,
// which holds its own pacing and emits a single summary notification instead.
func (p *Pipeline) auditOne(ctx context.Context, itemID string, itemType domain.ItemType, opts SingleOptions, notify bool) Outcome {
	operator, err := p.resolveOperator(opts.OperatorID)
	if err != nil {
		if notify {
			p.notify("audit failed: no operator", events.SeverityError)
		}
		return outcomeErr(err)
	}

	rec := p.buildAudit(itemID, itemType, operator, opts)

	switch final, submitErr := p.attempt(ctx, rec); final {
	case writeSucceeded:
		p.recordSuccess(ctx, rec)
		if notify {
			p.notify("audit recorded for "+itemID, events.SeverityInfo)
		}
		return Outcome{Success: true}

	case writeQueued:
		if err := p.queue.Enqueue(ctx, queue.NewAuditEntry(rec)); err != nil {
			p.logger.Error("failed to queue audit", "item", itemID, "error", err)
			if notify {
				p.notify("audit failed for "+itemID, events.SeverityError)
			}
			return outcomeErr(dErrors.Wrap(err, dErrors.CodeInternal, "queue audit"))
		}
		p.metrics.IncAuditsQueued()
		if notify {
			p.notify("audit for "+itemID+" saved for later", events.SeverityWarning)
		}
		return Outcome{Queued: true}

	default: // writeFailed
		p.metrics.IncAuditsFailed()
		if err := p.sessions.AddCounters(ctx, session.Counters{Failed: 1}); err != nil {
			p.logger.Error("failed to bump failed counter", "error", err)
		}
		if notify {
			p.notify("audit rejected for "+itemID, events.SeverityError)
		}
		return outcomeErr(dErrors.Wrap(submitErr, dErrors.CodeRemoteRejected, "audit rejected"))
	}
}

// writeState is the per-attempt state machine: attempting -> retrying ->
// queued | succeeded | failed.
type writeState int

const (
	writeAttempting writeState = iota
	writeRetrying
	writeSucceeded
	writeQueued
	writeFailed
)

// attempt drives one audit record through submission with linear backoff.
// Retries stop early when the connectivity signal reports offline; transient
// exhaustion resolves to queued, a remote rejection to failed.
func (p *Pipeline) attempt(ctx context.Context, rec domain.AuditRecord) (writeState, error) {
	state := writeAttempting
	attemptNo := 0
	var lastErr error

	for {
		switch state {
		case writeAttempting:
			attemptNo++
			start := time.Now()
			err := p.client.SubmitAudit(ctx, rec)
			p.metrics.ObserveSubmitDuration(time.Since(start).Seconds())

			switch {
			case err == nil:
				state = writeSucceeded
			case remote.IsRejection(err):
				lastErr = err
				state = writeFailed
			case attemptNo >= p.maxRetry:
				lastErr = err
				state = writeQueued
			default:
				lastErr = err
				state = writeRetrying
			}

		case writeRetrying:
			if !p.conn.Online() {
				p.logger.Info("offline, skipping remaining retries",
					"item", rec.ItemID(), "attempt", attemptNo)
				state = writeQueued
				continue
			}
			p.metrics.IncRetryAttempts()
			p.sleep(ctx, p.backoffStep*time.Duration(attemptNo))
			state = writeAttempting

		default:
			return state, lastErr
		}
	}
}

func (p *Pipeline) recordSuccess(ctx context.Context, rec domain.AuditRecord) {
	p.metrics.IncAuditsSucceeded()
	if err := p.archive.Append(ctx, rec); err != nil {
		p.logger.Error("failed to cache audit record", "item", rec.ItemID(), "error", err)
	}
	if err := p.sessions.AddCounters(ctx, session.Counters{Audited: 1}); err != nil {
		p.logger.Error("failed to bump audited counter", "error", err)
	}
	p.bus.Publish(events.AuditRecorded{
		ItemID:   rec.ItemID(),
		ItemType: rec.ItemType,
		Date:     rec.AuditDate,
	})
}

// resolveOperator prefers the per-call override, falling back to the active
// session's operator.
func (p *Pipeline) resolveOperator(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if active, ok := p.sessions.Active(); ok && active.OperatorID != "" {
		return active.OperatorID, nil
	}
	return "", dErrors.New(dErrors.CodeMissingOperator, "no operator resolved from options or active session")
}

func (p *Pipeline) buildAudit(itemID string, itemType domain.ItemType, operator string, opts SingleOptions) domain.AuditRecord {
	auditType := opts.AuditType
	if auditType == "" {
		auditType = domain.AuditOnly
	}
	rec := domain.NewAuditRecord(itemID, itemType, operator, p.now(), auditType)
	if opts.AuditDate != "" {
		rec.AuditDate = opts.AuditDate
	}
	rec.Notes = opts.Notes

	if active, ok := p.sessions.Active(); ok {
		rec.SessionID = active.ID
		rec.SessionName = active.Name
		rec.SessionMode = string(active.Mode)
	}
	return rec
}

func (p *Pipeline) notify(message string, severity events.Severity) {
	p.bus.Publish(events.NewNotification(message, severity))
}

// LastAudited reports the newest cached audit timestamp for an item.
func (p *Pipeline) LastAudited(ctx context.Context, itemID string, itemType domain.ItemType) (time.Time, bool, error) {
	return p.archive.LastAudited(ctx, itemID, itemType)
}
