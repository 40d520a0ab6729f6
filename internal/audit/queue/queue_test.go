package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"stocktake/internal/domain"
	"stocktake/internal/remote"
)

type QueueSuite struct {
	suite.Suite
	ctx    context.Context
	client *remote.MockClient
	queue  *Queue
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func (s *QueueSuite) SetupTest() {
	s.ctx = context.Background()
	s.client = remote.NewMockClient()
	s.queue = New(NewInMemoryStore(), s.client)
}

func (s *QueueSuite) auditEntry(itemID string) Entry {
	rec := domain.NewAuditRecord(itemID, domain.ItemMold, "E1", time.Now(), domain.AuditOnly)
	return NewAuditEntry(rec)
}

func (s *QueueSuite) TestEnqueueStampsEntry() {
	s.Require().NoError(s.queue.Enqueue(s.ctx, s.auditEntry("M1")))

	pending, err := s.queue.Pending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.NotEmpty(pending[0].ID)
	s.False(pending[0].QueuedAt.IsZero())
	s.Equal(KindAudit, pending[0].Kind)
}

func (s *QueueSuite) TestFlushStopsAtFirstFailure() {
	s.Require().NoError(s.queue.Enqueue(s.ctx, s.auditEntry("M1")))
	s.Require().NoError(s.queue.Enqueue(s.ctx, s.auditEntry("M2")))
	s.Require().NoError(s.queue.Enqueue(s.ctx, s.auditEntry("M3")))

	// ok, fail, ok
	s.client.Script(nil, &remote.TransientError{Op: "submit audit"})

	result, err := s.queue.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Flushed)
	s.Equal(2, result.Remaining)

	// The failing entry and everything after it stay queued in order.
	pending, err := s.queue.Pending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal("M2", pending[0].Audit.ItemID())
	s.Equal("M3", pending[1].Audit.ItemID())
}

func (s *QueueSuite) TestFlushEmptiesHealthyQueue() {
	s.Require().NoError(s.queue.Enqueue(s.ctx, s.auditEntry("M1")))
	s.Require().NoError(s.queue.Enqueue(s.ctx, s.auditEntry("M2")))

	result, err := s.queue.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, result.Flushed)
	s.Equal(0, result.Remaining)
	s.Len(s.client.Audits(), 2)
}

func (s *QueueSuite) TestFlushDispatchesByKind() {
	move := domain.LocationChangeRecord{ItemID: "M1", ItemType: domain.ItemMold, NewRackLayerID: "13", EmployeeID: "E1"}
	batch := domain.BatchPayload{
		Items:           []domain.AuditRecord{domain.NewAuditRecord("M1", domain.ItemMold, "E1", time.Now(), domain.AuditWithRelocation)},
		LocationChanges: []domain.LocationChangeRecord{move},
	}

	s.Require().NoError(s.queue.Enqueue(s.ctx, NewLocationEntry(move)))
	s.Require().NoError(s.queue.Enqueue(s.ctx, NewBatchEntry(batch)))

	result, err := s.queue.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, result.Flushed)
	s.Len(s.client.LocationChanges(), 1)
	s.Len(s.client.Batches(), 1)
}

func (s *QueueSuite) TestOverflowDropsOldest() {
	q := New(NewInMemoryStore(), s.client, WithCapacity(2))

	s.Require().NoError(q.Enqueue(s.ctx, s.auditEntry("M1")))
	s.Require().NoError(q.Enqueue(s.ctx, s.auditEntry("M2")))
	s.Require().NoError(q.Enqueue(s.ctx, s.auditEntry("M3")))

	pending, err := q.Pending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal("M2", pending[0].Audit.ItemID())
	s.Equal("M3", pending[1].Audit.ItemID())
}

func (s *QueueSuite) TestFlushEmptyQueue() {
	result, err := s.queue.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, result.Flushed)
	s.Equal(0, result.Remaining)
}
