// Package session owns the audit session lifecycle: one operator, one set of
// counters, one optional target location, exactly one active session at a
// time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"stocktake/internal/events"
	"stocktake/internal/racklayer"
	dErrors "stocktake/pkg/domain-errors"
	"stocktake/pkg/sentinel"
)

// StartParams carries everything needed to open a session.
type StartParams struct {
	Mode              Mode
	OperatorID        string
	OperatorName      string
	Note              string
	TargetRackLayerID string
	CompareEnabled    bool
	// ExplicitName overrides the generated session name (still de-duplicated).
	ExplicitName string
}

// Manager is the session state machine: NO_SESSION -> ACTIVE -> NO_SESSION.
// Starting while a session is active ends the previous one first, so the
// history log always records an end before a new start.
type Manager struct {
	mu           sync.Mutex
	store        Store
	bus          *events.Bus
	logger       *slog.Logger
	historyLimit int
	now          func() time.Time

	active *Session
}

// Option configures the Manager.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithBus(bus *events.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a manager over the given store, recovering any active
// session persisted by a previous process.
func NewManager(store Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:        store,
		logger:       slog.Default(),
		historyLimit: 50,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	active, err := store.LoadActive(context.Background())
	switch {
	case err == nil:
		m.active = &active
		m.logger.Info("recovered active session", "session_id", active.ID)
	case errors.Is(err, sentinel.ErrNotFound):
		// fresh start
	default:
		return nil, fmt.Errorf("load active session: %w", err)
	}
	return m, nil
}

// Start opens a session, implicitly ending any active one first.
func (m *Manager) Start(ctx context.Context, params StartParams) (Session, error) {
	if strings.TrimSpace(params.OperatorID) == "" {
		return Session{}, dErrors.New(dErrors.CodeValidation, "operator id is required")
	}
	if !params.Mode.Valid() {
		return Session{}, dErrors.Newf(dErrors.CodeValidation, "unknown session mode %q", params.Mode)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		if err := m.endLocked(ctx, "superseded by new session"); err != nil {
			return Session{}, err
		}
	}

	now := m.now()
	history, err := m.store.History(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("load session history: %w", err)
	}

	name := params.ExplicitName
	if name == "" {
		name = generatedName(params.Mode, params.OperatorID, now, history)
	}
	name = dedupeName(name, history)

	sess := Session{
		ID:                fmt.Sprintf("%s-%d-%s", params.Mode, now.UnixMilli(), params.OperatorID),
		Name:              name,
		Mode:              params.Mode,
		OperatorID:        params.OperatorID,
		OperatorName:      params.OperatorName,
		Note:              params.Note,
		TargetRackLayerID: racklayer.Normalize(params.TargetRackLayerID),
		CompareEnabled:    params.CompareEnabled,
		StartedAt:         now,
	}

	if err := m.store.SaveActive(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("save active session: %w", err)
	}
	if err := m.store.SaveLastOperator(ctx, Operator{ID: params.OperatorID, Name: params.OperatorName}); err != nil {
		return Session{}, fmt.Errorf("save last operator: %w", err)
	}

	m.active = &sess
	m.logger.Info("session started",
		"session_id", sess.ID, "mode", sess.Mode, "operator", sess.OperatorID)
	m.publishChanged()
	return sess, nil
}

// UpdateTarget replaces the target rack-layer and comparison toggle on the
// active session.
func (m *Manager) UpdateTarget(ctx context.Context, rackLayerID string, compareEnabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return dErrors.New(dErrors.CodeNoActiveSession, "no active session")
	}

	m.active.TargetRackLayerID = racklayer.Normalize(rackLayerID)
	m.active.CompareEnabled = compareEnabled

	if err := m.store.SaveActive(ctx, *m.active); err != nil {
		return fmt.Errorf("save active session: %w", err)
	}
	m.publishChanged()
	return nil
}

// End closes the active session, appending it to history. No-op when nothing
// is active.
func (m *Manager) End(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	if err := m.endLocked(ctx, reason); err != nil {
		return err
	}
	m.publishChanged()
	return nil
}

func (m *Manager) endLocked(ctx context.Context, reason string) error {
	ended := *m.active
	endedAt := m.now()
	ended.EndedAt = &endedAt
	ended.EndReason = reason

	if err := m.store.AppendHistory(ctx, ended, m.historyLimit); err != nil {
		return fmt.Errorf("append session history: %w", err)
	}
	if err := m.store.ClearActive(ctx); err != nil {
		return fmt.Errorf("clear active session: %w", err)
	}

	m.logger.Info("session ended",
		"session_id", ended.ID, "reason", reason,
		"audited", ended.Counters.Audited,
		"relocated", ended.Counters.Relocated,
		"failed", ended.Counters.Failed)
	m.active = nil
	return nil
}

// Active returns a copy of the current session, or false when none is active.
func (m *Manager) Active() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Session{}, false
	}
	return *m.active, true
}

// AddCounters applies write-outcome deltas to the active session. Sessionless
// writes (operator supplied per call) have nothing to count against.
func (m *Manager) AddCounters(ctx context.Context, delta Counters) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	m.active.Counters.Audited += delta.Audited
	m.active.Counters.Relocated += delta.Relocated
	m.active.Counters.Failed += delta.Failed

	if err := m.store.SaveActive(ctx, *m.active); err != nil {
		return fmt.Errorf("save active session: %w", err)
	}
	m.publishChanged()
	return nil
}

// History returns the terminal session log, newest first.
func (m *Manager) History(ctx context.Context) ([]Session, error) {
	return m.store.History(ctx)
}

// LastOperator returns the operator of the most recent session, or false when
// none was recorded yet.
func (m *Manager) LastOperator(ctx context.Context) (Operator, bool, error) {
	op, err := m.store.LastOperator(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Operator{}, false, nil
	}
	if err != nil {
		return Operator{}, false, err
	}
	return op, true, nil
}

func (m *Manager) publishChanged() {
	if m.active != nil {
		m.bus.Publish(events.SessionChanged{
			SessionID:  m.active.ID,
			Name:       m.active.Name,
			Mode:       string(m.active.Mode),
			OperatorID: m.active.OperatorID,
			Active:     true,
		})
		return
	}
	m.bus.Publish(events.SessionChanged{Active: false})
}

// generatedName derives the default session name: {mode}-{date}-{operator}-{seq}
// where seq counts this operator's same-mode sessions today. INSTANT sessions
// use the {date}-{operator}-AUDIT shorthand.
func generatedName(mode Mode, operatorID string, now time.Time, history []Session) string {
	date := now.Format("20060102")
	if mode == ModeInstant {
		return fmt.Sprintf("%s-%s-AUDIT", date, operatorID)
	}
	seq := 1
	for _, h := range history {
		if h.Mode == mode && h.OperatorID == operatorID && h.StartedAt.Format("20060102") == date {
			seq++
		}
	}
	return fmt.Sprintf("%s-%s-%s-%d", mode, date, operatorID, seq)
}

// dedupeName suffixes -2, -3, ... until the name collides with nothing in
// history.
func dedupeName(name string, history []Session) string {
	taken := make(map[string]struct{}, len(history))
	for _, h := range history {
		taken[h.Name] = struct{}{}
	}
	if _, clash := taken[name]; !clash {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if _, clash := taken[candidate]; !clash {
			return candidate
		}
	}
}
