package archive

import (
	"context"
	"sort"
	"sync"
	"time"

	"stocktake/internal/domain"
)

type itemKey struct {
	id  string
	typ domain.ItemType
}

// InMemoryStore keeps the audit cache in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[itemKey][]domain.AuditRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[itemKey][]domain.AuditRecord)}
}

func (s *InMemoryStore) Append(_ context.Context, rec domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := itemKey{id: rec.ItemID(), typ: rec.ItemType}
	s.records[key] = append(s.records[key], rec)
	return nil
}

func (s *InMemoryStore) LastAudited(_ context.Context, itemID string, itemType domain.ItemType) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.records[itemKey{id: itemID, typ: itemType}]
	if len(recs) == 0 {
		return time.Time{}, false, nil
	}
	newest := recs[0].Timestamp
	for _, r := range recs[1:] {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	return newest, true, nil
}

func (s *InMemoryStore) ListByItem(_ context.Context, itemID string, itemType domain.ItemType) ([]domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := append([]domain.AuditRecord(nil), s.records[itemKey{id: itemID, typ: itemType}]...)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	return recs, nil
}
