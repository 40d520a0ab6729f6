package audit

import (
	"context"

	"stocktake/internal/audit/queue"
	"stocktake/internal/domain"
	"stocktake/internal/events"
	"stocktake/internal/racklayer"
	"stocktake/internal/remote"
	"stocktake/internal/session"
	dErrors "stocktake/pkg/domain-errors"
)

// RelocateAndAudit composes a location change and an audit into one
// user-visible operation, submitted as a single batch call. On transient
// failure both records queue together as one entry so replay can never
// produce a phantom move (a location change without its audit, or vice
// versa).
func (p *Pipeline) RelocateAndAudit(ctx context.Context, itemID string, itemType domain.ItemType, newRackLayerID string, opts RelocateOptions) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	operator, err := p.resolveOperator(opts.OperatorID)
	if err != nil {
		p.notify("relocation failed: no operator", events.SeverityError)
		return outcomeErr(err)
	}

	newID := racklayer.Normalize(newRackLayerID)
	if newID == "" {
		p.notify("relocation failed: invalid location", events.SeverityError)
		return outcomeErr(dErrors.Newf(dErrors.CodeInvalidLocation,
			"location %q has no resolvable rack-layer", newRackLayerID))
	}

	var sessionID string
	if active, ok := p.sessions.Active(); ok {
		sessionID = active.ID
	}

	move := domain.LocationChangeRecord{
		ItemID:         itemID,
		ItemType:       itemType,
		OldRackLayerID: racklayer.Normalize(opts.OldRackLayerID),
		NewRackLayerID: newID,
		EmployeeID:     operator,
		Timestamp:      p.now(),
		Notes:          opts.Notes,
		SessionID:      sessionID,
	}

	batch := domain.BatchPayload{LocationChanges: []domain.LocationChangeRecord{move}}
	if !opts.SkipAudit {
		rec := p.buildAudit(itemID, itemType, operator, SingleOptions{
			Notes:     opts.Notes,
			AuditType: domain.AuditWithRelocation,
		})
		batch.Items = []domain.AuditRecord{rec}
	}

	_, submitErr := p.client.SubmitAuditBatch(ctx, batch)
	switch {
	case submitErr == nil:
		p.recordRelocation(ctx, batch, newID)
		p.notify("relocated "+itemID+" to "+newID, events.SeverityInfo)
		return Outcome{Success: true}

	case remote.IsRejection(submitErr):
		p.metrics.IncAuditsFailed()
		if err := p.sessions.AddCounters(ctx, session.Counters{Failed: 1}); err != nil {
			p.logger.Error("failed to bump failed counter", "error", err)
		}
		p.notify("relocation rejected for "+itemID, events.SeverityError)
		return outcomeErr(dErrors.Wrap(submitErr, dErrors.CodeRemoteRejected, "relocation rejected"))

	default:
		// One combined entry keeps the pairing intact across replay.
		if err := p.queue.Enqueue(ctx, queue.NewBatchEntry(batch)); err != nil {
			p.logger.Error("failed to queue relocation", "item", itemID, "error", err)
			p.notify("relocation failed for "+itemID, events.SeverityError)
			return outcomeErr(dErrors.Wrap(err, dErrors.CodeInternal, "queue relocation"))
		}
		p.metrics.IncAuditsQueued()
		p.notify("relocation for "+itemID+" saved for later", events.SeverityWarning)
		return Outcome{Queued: true}
	}
}

func (p *Pipeline) recordRelocation(ctx context.Context, batch domain.BatchPayload, newRackLayerID string) {
	move := batch.LocationChanges[0]
	p.metrics.IncRelocations()

	delta := session.Counters{Relocated: 1}
	if len(batch.Items) > 0 {
		delta.Audited = 1
		rec := batch.Items[0]
		p.metrics.IncAuditsSucceeded()
		if err := p.archive.Append(ctx, rec); err != nil {
			p.logger.Error("failed to cache audit record", "item", rec.ItemID(), "error", err)
		}
		p.bus.Publish(events.AuditRecorded{
			ItemID:   rec.ItemID(),
			ItemType: rec.ItemType,
			Date:     rec.AuditDate,
		})
	}
	if err := p.sessions.AddCounters(ctx, delta); err != nil {
		p.logger.Error("failed to bump relocation counters", "error", err)
	}

	// Refresh the local snapshot so an immediate re-comparison sees the move.
	if p.selection != nil {
		p.selection.UpdateRackLayer(move.ItemID, move.ItemType, newRackLayerID)
	}
}
