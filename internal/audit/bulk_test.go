package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocktake/internal/domain"
	"stocktake/internal/remote"
	"stocktake/internal/selection"
	"stocktake/internal/session"
	dErrors "stocktake/pkg/domain-errors"
)

func newTestCoordinator(f *fixture) *Coordinator {
	return NewCoordinator(f.pipeline, f.client,
		WithCoordinatorBus(f.bus),
		WithChunkSize(20),
		WithPacing(0, 0),
	)
}

func makeItems(n int) []selection.Item {
	items := make([]selection.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, selection.Item{
			ID:   fmt.Sprintf("M%d", i+1),
			Type: domain.ItemMold,
		})
	}
	return items
}

func TestAuditManyRequiresItemsAndOperator(t *testing.T) {
	f := newFixture(t)
	c := newTestCoordinator(f)

	_, err := c.AuditMany(f.ctx, nil, BulkOptions{OperatorID: "E1"})
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))

	_, err = c.AuditMany(f.ctx, makeItems(2), BulkOptions{})
	assert.True(t, dErrors.Is(err, dErrors.CodeMissingOperator))
	assert.Equal(t, 0, f.client.Calls())
}

func TestAuditManySequentialTally(t *testing.T) {
	f := newFixture(t)
	c := newTestCoordinator(f)

	// Alternate success and transient failure across 4 items. Failures
	// exhaust 3 attempts each before queueing.
	f.client.Script(
		nil,
		&remote.TransientError{Op: "a"}, &remote.TransientError{Op: "a"}, &remote.TransientError{Op: "a"},
		nil,
		&remote.TransientError{Op: "a"}, &remote.TransientError{Op: "a"}, &remote.TransientError{Op: "a"},
	)

	result, err := c.AuditMany(f.ctx, makeItems(4), BulkOptions{OperatorID: "E1"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, result.FailCount)
	assert.Equal(t, 4, result.SuccessCount+result.FailCount)
	require.Len(t, result.PerItem, 4)
	assert.True(t, result.PerItem[1].Queued)

	// Exactly N progress signals plus one completion.
	require.Len(t, f.progress, 4)
	assert.Equal(t, 4, f.progress[3].Done)
	assert.Equal(t, 2, f.progress[3].Success)
	require.Len(t, f.completed, 1)
	assert.Equal(t, 2, f.completed[0].Count)
	assert.Equal(t, 2, f.completed[0].FailedCount)

	// One summary notification, not one per item.
	require.Len(t, f.notifications, 1)
}

func TestAuditManyBatchedChunking(t *testing.T) {
	f := newFixture(t)
	c := NewCoordinator(f.pipeline, f.client,
		WithCoordinatorBus(f.bus),
		WithChunkSize(20),
		WithPacing(0, 0),
	)

	// 2*chunkSize + 5 items issue exactly 3 chunk submissions.
	result, err := c.AuditMany(f.ctx, makeItems(45), BulkOptions{OperatorID: "E1", UseBatch: true})
	require.NoError(t, err)

	batches := f.client.Batches()
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Items, 20)
	assert.Len(t, batches[1].Items, 20)
	assert.Len(t, batches[2].Items, 5)

	assert.Equal(t, 45, result.SuccessCount)
	assert.Equal(t, 0, result.FailCount)
	require.Len(t, f.completed, 1)

	// Batched runs emit no fine-grained progress.
	assert.Empty(t, f.progress)
}

func TestAuditManyBatchedFallsBackPerChunk(t *testing.T) {
	f := newFixture(t)
	c := NewCoordinator(f.pipeline, f.client,
		WithCoordinatorBus(f.bus),
		WithChunkSize(3),
		WithPacing(0, 0),
	)

	// First chunk submission fails; its 3 items fall back to sequential
	// (each succeeding), then the second chunk goes through as a batch.
	f.client.Script(&remote.TransientError{Op: "batch"})

	result, err := c.AuditMany(f.ctx, makeItems(5), BulkOptions{OperatorID: "E1", UseBatch: true})
	require.NoError(t, err)

	assert.Equal(t, 5, result.SuccessCount)
	assert.Equal(t, 0, result.FailCount)
	assert.Len(t, f.client.Audits(), 3, "fallback resubmits chunk items individually")
	assert.Len(t, f.client.Batches(), 1, "second chunk still batches")
}

func TestAuditManyGuardsConcurrentRuns(t *testing.T) {
	f := newFixture(t)
	c := newTestCoordinator(f)
	c.running.Store(true)

	_, err := c.AuditMany(f.ctx, makeItems(1), BulkOptions{OperatorID: "E1"})
	assert.True(t, dErrors.Is(err, dErrors.CodeConflict))
}

func TestAuditManyBatchedPartialSuccessTally(t *testing.T) {
	f := newFixture(t)
	f.startSession(t, session.StartParams{Mode: session.ModeTargetedByList, OperatorID: "E1"})

	c := NewCoordinator(f.pipeline, partialBatchClient{MockClient: f.client, saved: 2},
		WithCoordinatorBus(f.bus),
		WithChunkSize(4),
		WithPacing(0, 0),
	)

	result, err := c.AuditMany(f.ctx, makeItems(4), BulkOptions{UseBatch: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, result.FailCount)

	active, _ := f.sessions.Active()
	assert.Equal(t, 2, active.Counters.Audited)
	assert.Equal(t, 2, active.Counters.Failed)
}

// partialBatchClient accepts batches but reports only savedCount items kept.
type partialBatchClient struct {
	*remote.MockClient
	saved int
}

func (c partialBatchClient) SubmitAuditBatch(_ context.Context, _ domain.BatchPayload) (remote.BatchResult, error) {
	return remote.BatchResult{SavedCount: c.saved}, nil
}
