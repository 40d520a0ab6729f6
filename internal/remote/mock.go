package remote

import (
	"context"
	"sync"
	"time"

	"stocktake/internal/domain"
)

// MockClient is a scripted system of record for development and tests. Each
// submission consumes the next scripted error (nil means success); an empty
// script always succeeds. A configurable latency mimics real calls.
type MockClient struct {
	Latency time.Duration

	// FailWith, when set, is returned on every call regardless of script.
	FailWith error

	mu      sync.Mutex
	script  []error
	calls   int
	audits  []domain.AuditRecord
	moves   []domain.LocationChangeRecord
	batches []domain.BatchPayload
}

// NewMockClient builds a mock that succeeds on every call until scripted
// otherwise.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Script queues outcomes consumed one per submission, in order.
func (m *MockClient) Script(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, errs...)
}

func (m *MockClient) next() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.FailWith != nil {
		return m.FailWith
	}
	if len(m.script) == 0 {
		return nil
	}
	err := m.script[0]
	m.script = m.script[1:]
	return err
}

// Calls returns the number of submissions attempted so far.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) SubmitAudit(_ context.Context, rec domain.AuditRecord) error {
	time.Sleep(m.Latency)
	if err := m.next(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, rec)
	return nil
}

func (m *MockClient) SubmitLocationChange(_ context.Context, rec domain.LocationChangeRecord) error {
	time.Sleep(m.Latency)
	if err := m.next(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moves = append(m.moves, rec)
	return nil
}

func (m *MockClient) SubmitAuditBatch(_ context.Context, batch domain.BatchPayload) (BatchResult, error) {
	time.Sleep(m.Latency)
	if err := m.next(); err != nil {
		return BatchResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return BatchResult{SavedCount: len(batch.Items)}, nil
}

// Audits returns every audit accepted so far.
func (m *MockClient) Audits() []domain.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditRecord(nil), m.audits...)
}

// LocationChanges returns every accepted standalone location change.
func (m *MockClient) LocationChanges() []domain.LocationChangeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LocationChangeRecord(nil), m.moves...)
}

// Batches returns every accepted batch payload.
func (m *MockClient) Batches() []domain.BatchPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BatchPayload(nil), m.batches...)
}
