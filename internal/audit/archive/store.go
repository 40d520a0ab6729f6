// Package archive keeps a local cache of submitted audit records so
// "last audited" queries reflect new writes without a remote reload.
package archive

import (
	"context"
	"time"

	"stocktake/internal/domain"
)

// Store appends submitted audit records and answers last-audited queries.
type Store interface {
	Append(ctx context.Context, rec domain.AuditRecord) error
	// LastAudited returns the newest audit timestamp for the item, with
	// ok=false when the item was never audited.
	LastAudited(ctx context.Context, itemID string, itemType domain.ItemType) (time.Time, bool, error)
	// ListByItem returns the item's audit records, newest first.
	ListByItem(ctx context.Context, itemID string, itemType domain.ItemType) ([]domain.AuditRecord, error)
}
