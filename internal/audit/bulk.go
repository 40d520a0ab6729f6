package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"stocktake/internal/domain"
	"stocktake/internal/events"
	"stocktake/internal/platform/metrics"
	"stocktake/internal/remote"
	"stocktake/internal/selection"
	"stocktake/internal/session"
	dErrors "stocktake/pkg/domain-errors"
)

// BulkOptions selects and tunes a bulk strategy.
type BulkOptions struct {
	// UseBatch submits fixed-size chunks as single batch calls, falling back
	// to the paced sequential path for any chunk the remote refuses.
	UseBatch bool
	// OperatorID overrides the active session's operator for every item.
	OperatorID string
	Notes      string
}

// ItemResult is the per-item accounting of a bulk run.
type ItemResult struct {
	ItemID   string          `json:"itemId"`
	ItemType domain.ItemType `json:"itemType"`
	Success  bool            `json:"success"`
	Queued   bool            `json:"queued"`
}

// BulkResult is the final tally of a bulk run.
type BulkResult struct {
	SuccessCount int          `json:"successCount"`
	FailCount    int          `json:"failCount"`
	PerItem      []ItemResult `json:"perItem"`
}

// Coordinator drives many audit writes for a selection, either one-by-one
// with pacing or as chunked batches. One bulk run at a time per engine
// instance; writes for a run never fan out in parallel.
type Coordinator struct {
	pipeline *Pipeline
	client   remote.Client
	bus      *events.Bus
	logger   *slog.Logger
	metrics  *metrics.Metrics

	chunkSize     int
	delayAfterOK  time.Duration
	delayAfterErr time.Duration

	running atomic.Bool
}

// CoordinatorOption configures the Coordinator.
type CoordinatorOption func(*Coordinator)

func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

func WithCoordinatorBus(bus *events.Bus) CoordinatorOption {
	return func(c *Coordinator) { c.bus = bus }
}

func WithCoordinatorMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

func WithChunkSize(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithPacing sets the sleeps after a successful and a failed item. Pacing
// protects the remote from burst load and lets append-only storage catch up.
func WithPacing(afterOK, afterErr time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.delayAfterOK = afterOK
		c.delayAfterErr = afterErr
	}
}

// NewCoordinator builds a bulk coordinator over the write pipeline.
func NewCoordinator(pipeline *Pipeline, client remote.Client, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		pipeline:      pipeline,
		client:        client,
		logger:        slog.Default(),
		chunkSize:     20,
		delayAfterOK:  300 * time.Millisecond,
		delayAfterErr: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuditMany audits every selected item and reports the final tally. The run
// ends with exactly one BulkAuditCompleted signal and one summary
// Notification; per-item failures never abort the run.
func (c *Coordinator) AuditMany(ctx context.Context, items []selection.Item, opts BulkOptions) (BulkResult, error) {
	if len(items) == 0 {
		return BulkResult{}, dErrors.New(dErrors.CodeValidation, "no items selected")
	}
	if !c.running.CompareAndSwap(false, true) {
		return BulkResult{}, dErrors.New(dErrors.CodeConflict, "a bulk run is already active")
	}
	defer c.running.Store(false)

	if _, err := c.pipeline.resolveOperator(opts.OperatorID); err != nil {
		return BulkResult{}, err
	}

	var result BulkResult
	if opts.UseBatch {
		result = c.runBatched(ctx, items, opts)
	} else {
		result = c.runSequential(ctx, items, opts, newProgress(c.bus, len(items)))
	}

	c.metrics.AddBulkItems(len(items))
	c.bus.Publish(events.BulkAuditCompleted{
		Count:       result.SuccessCount,
		FailedCount: result.FailCount,
	})
	severity := events.SeverityInfo
	if result.FailCount > 0 {
		severity = events.SeverityWarning
	}
	c.bus.Publish(events.NewNotification(
		fmt.Sprintf("bulk audit finished: %d ok, %d failed", result.SuccessCount, result.FailCount),
		severity))

	c.logger.Info("bulk audit completed",
		"items", len(items), "success", result.SuccessCount, "failed", result.FailCount,
		"batched", opts.UseBatch)
	return result, nil
}

// runSequential audits items one at a time with pacing sleeps, emitting a
// progress signal after every item.
func (c *Coordinator) runSequential(ctx context.Context, items []selection.Item, opts BulkOptions, prog *progress) BulkResult {
	var result BulkResult
	single := SingleOptions{OperatorID: opts.OperatorID, Notes: opts.Notes}

	for i, item := range items {
		outcome := func() Outcome {
			c.pipeline.mu.Lock()
			defer c.pipeline.mu.Unlock()
			return c.pipeline.auditOne(ctx, item.ID, item.Type, single, false)
		}()

		result.PerItem = append(result.PerItem, ItemResult{
			ItemID:   item.ID,
			ItemType: item.Type,
			Success:  outcome.Success,
			Queued:   outcome.Queued,
		})
		if outcome.Success {
			result.SuccessCount++
		} else {
			result.FailCount++
		}
		prog.step(outcome.Success)

		if i < len(items)-1 {
			delay := c.delayAfterOK
			if !outcome.Success {
				delay = c.delayAfterErr
			}
			c.pipeline.sleep(ctx, delay)
		}
	}
	return result
}

// runBatched loops over fixed-size chunks, submitting each as one batch call.
// A refused chunk falls back to the sequential path for exactly that chunk's
// items, so nothing is silently dropped and the fallback depth is bounded at
// one.
func (c *Coordinator) runBatched(ctx context.Context, items []selection.Item, opts BulkOptions) BulkResult {
	var result BulkResult
	prog := newProgress(nil, len(items)) // batch runs report no fine-grained progress

	for start := 0; start < len(items); start += c.chunkSize {
		end := min(start+c.chunkSize, len(items))
		chunk := items[start:end]

		records := make([]domain.AuditRecord, 0, len(chunk))
		func() {
			c.pipeline.mu.Lock()
			defer c.pipeline.mu.Unlock()
			operator, _ := c.pipeline.resolveOperator(opts.OperatorID)
			for _, item := range chunk {
				records = append(records, c.pipeline.buildAudit(item.ID, item.Type, operator, SingleOptions{
					Notes: opts.Notes,
				}))
			}
		}()

		saved, err := c.submitChunk(ctx, records)
		if err != nil {
			c.logger.Info("chunk submission failed, falling back to sequential",
				"chunk_start", start, "chunk_len", len(chunk), "error", err)
			chunkResult := c.runSequential(ctx, chunk, opts, prog)
			result.SuccessCount += chunkResult.SuccessCount
			result.FailCount += chunkResult.FailCount
			result.PerItem = append(result.PerItem, chunkResult.PerItem...)
			continue
		}

		failed := len(chunk) - saved
		result.SuccessCount += saved
		result.FailCount += failed
		c.recordChunk(ctx, chunk, records, saved, &result)
	}
	return result
}

func (c *Coordinator) submitChunk(ctx context.Context, records []domain.AuditRecord) (int, error) {
	res, err := c.client.SubmitAuditBatch(ctx, domain.BatchPayload{Items: records})
	if err != nil {
		return 0, err
	}
	saved := res.SavedCount
	if saved < 0 {
		saved = 0
	}
	if saved > len(records) {
		saved = len(records)
	}
	return saved, nil
}

// recordChunk applies counters and caches for a chunk the remote accepted.
// On partial success the remote does not say which records it kept, so only
// the tally moves; the cache is updated on full acceptance only.
func (c *Coordinator) recordChunk(ctx context.Context, chunk []selection.Item, records []domain.AuditRecord, saved int, result *BulkResult) {
	full := saved == len(chunk)
	for i, item := range chunk {
		result.PerItem = append(result.PerItem, ItemResult{
			ItemID:   item.ID,
			ItemType: item.Type,
			Success:  full,
		})
		if full {
			c.pipeline.recordSuccess(ctx, records[i])
		}
	}
	if !full {
		delta := session.Counters{Audited: saved, Failed: len(chunk) - saved}
		if err := c.pipeline.sessions.AddCounters(ctx, delta); err != nil {
			c.logger.Error("failed to bump chunk counters", "error", err)
		}
		c.metrics.IncAuditsFailed()
	}
}

// progress emits BulkAuditProgress signals; a nil bus drops them.
type progress struct {
	bus     *events.Bus
	total   int
	done    int
	success int
	failed  int
}

func newProgress(bus *events.Bus, total int) *progress {
	return &progress{bus: bus, total: total}
}

func (p *progress) step(success bool) {
	p.done++
	if success {
		p.success++
	} else {
		p.failed++
	}
	p.bus.Publish(events.BulkAuditProgress{
		Total:   p.total,
		Done:    p.done,
		Success: p.success,
		Failed:  p.failed,
	})
}
