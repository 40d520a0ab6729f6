package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"stocktake/internal/audit"
	"stocktake/internal/audit/archive"
	"stocktake/internal/audit/queue"
	"stocktake/internal/domain"
	"stocktake/internal/events"
	"stocktake/internal/remote"
	"stocktake/internal/selection"
	"stocktake/internal/session"
)

// HandlerSuite exercises the HTTP layer against real in-memory components.
// Handler tests cover HTTP concerns: parsing, status mapping, response shape.
type HandlerSuite struct {
	suite.Suite
	router   http.Handler
	client   *remote.MockClient
	sessions *session.Manager
	q        *queue.Queue
	set      *selection.Set
	conn     *remote.Connectivity
}

func (s *HandlerSuite) SetupTest() {
	s.client = remote.NewMockClient()
	s.set = selection.NewSet()
	s.conn = remote.NewConnectivity()
	bus := events.NewBus()

	var err error
	s.sessions, err = session.NewManager(session.NewInMemoryStore(), session.WithBus(bus))
	require.NoError(s.T(), err)

	s.q = queue.New(queue.NewInMemoryStore(), s.client)
	pipeline := audit.NewPipeline(s.client, s.q, archive.NewInMemoryStore(), s.sessions, s.conn,
		audit.WithBus(bus),
		audit.WithSelection(s.set),
		audit.WithBackoffStep(0),
	)
	coordinator := audit.NewCoordinator(pipeline, s.client,
		audit.WithCoordinatorBus(bus),
		audit.WithPacing(0, 0),
	)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(logger, s.sessions, pipeline, coordinator, s.q, s.set, s.conn)

	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path string, payload any) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(s.T(), err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decodeBody(rec *httptest.ResponseRecorder, v any) {
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), v))
}

func (s *HandlerSuite) TestStartSession() {
	rec := s.do(http.MethodPost, "/sessions", map[string]any{
		"mode":       string(session.ModeTargetedByLocation),
		"operatorId": "E1",
	})

	require.Equal(s.T(), http.StatusCreated, rec.Code)

	var sess session.Session
	s.decodeBody(rec, &sess)
	assert.Equal(s.T(), "E1", sess.OperatorID)
	assert.NotEmpty(s.T(), sess.ID)
	assert.NotEmpty(s.T(), sess.Name)
}

func (s *HandlerSuite) TestStartSessionRejectsUnknownMode() {
	rec := s.do(http.MethodPost, "/sessions", map[string]any{
		"mode":       "SIDEWAYS",
		"operatorId": "E1",
	})

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestStartSessionRequiresOperator() {
	rec := s.do(http.MethodPost, "/sessions", map[string]any{
		"mode": string(session.ModeInstant),
	})

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestCurrentSessionNotFoundWhenIdle() {
	rec := s.do(http.MethodGet, "/sessions/current", nil)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestEndSessionMovesToHistory() {
	s.do(http.MethodPost, "/sessions", map[string]any{
		"mode":       string(session.ModeInstant),
		"operatorId": "E1",
	})

	rec := s.do(http.MethodPost, "/sessions/end", map[string]any{"reason": "done"})
	require.Equal(s.T(), http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/sessions/current", nil)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/sessions/history", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var history []session.Session
	s.decodeBody(rec, &history)
	require.Len(s.T(), history, 1)
	assert.Equal(s.T(), "done", history[0].EndReason)
}

func (s *HandlerSuite) TestUpdateTarget() {
	s.do(http.MethodPost, "/sessions", map[string]any{
		"mode":       string(session.ModeTargetedByLocation),
		"operatorId": "E1",
	})

	rec := s.do(http.MethodPut, "/sessions/target", map[string]any{
		"rackLayerId":    "1-3",
		"compareEnabled": true,
	})
	require.Equal(s.T(), http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/sessions/current", nil)
	var sess session.Session
	s.decodeBody(rec, &sess)
	assert.Equal(s.T(), "13", sess.TargetRackLayerID)
	assert.True(s.T(), sess.CompareEnabled)
}

func (s *HandlerSuite) TestLastOperatorEmpty() {
	rec := s.do(http.MethodGet, "/sessions/operator", nil)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestAuditSingleSuccess() {
	rec := s.do(http.MethodPost, "/audits", map[string]any{
		"itemId":     "M1",
		"itemType":   string(domain.ItemMold),
		"operatorId": "E1",
	})

	require.Equal(s.T(), http.StatusOK, rec.Code)

	var outcome audit.Outcome
	s.decodeBody(rec, &outcome)
	assert.True(s.T(), outcome.Success)
	require.Len(s.T(), s.client.Audits(), 1)
	assert.Equal(s.T(), "M1", s.client.Audits()[0].MoldID)
}

func (s *HandlerSuite) TestAuditSingleInvalidJSON() {
	req := httptest.NewRequest(http.MethodPost, "/audits", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), 0, s.client.Calls())
}

func (s *HandlerSuite) TestAuditSingleUnknownItemType() {
	rec := s.do(http.MethodPost, "/audits", map[string]any{
		"itemId":     "M1",
		"itemType":   "WIDGET",
		"operatorId": "E1",
	})

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), 0, s.client.Calls())
}

func (s *HandlerSuite) TestAuditSingleMissingOperator() {
	rec := s.do(http.MethodPost, "/audits", map[string]any{
		"itemId":   "M1",
		"itemType": string(domain.ItemMold),
	})

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestAuditSingleQueuedReturnsAccepted() {
	s.client.FailWith = &remote.TransientError{Op: "submit audit"}

	rec := s.do(http.MethodPost, "/audits", map[string]any{
		"itemId":     "M1",
		"itemType":   string(domain.ItemMold),
		"operatorId": "E1",
	})

	require.Equal(s.T(), http.StatusAccepted, rec.Code)

	var outcome audit.Outcome
	s.decodeBody(rec, &outcome)
	assert.True(s.T(), outcome.Queued)
}

func (s *HandlerSuite) TestRelocateSuccess() {
	rec := s.do(http.MethodPost, "/relocations", map[string]any{
		"itemId":         "M1",
		"itemType":       string(domain.ItemMold),
		"newRackLayerId": "1-3",
		"operatorId":     "E1",
	})

	require.Equal(s.T(), http.StatusOK, rec.Code)
	require.Len(s.T(), s.client.Batches(), 1)
	assert.Equal(s.T(), "13", s.client.Batches()[0].LocationChanges[0].NewRackLayerID)
}

func (s *HandlerSuite) TestRelocateInvalidLocation() {
	rec := s.do(http.MethodPost, "/relocations", map[string]any{
		"itemId":         "M1",
		"itemType":       string(domain.ItemMold),
		"newRackLayerId": "no digits here",
		"operatorId":     "E1",
	})

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), 0, s.client.Calls())
}

func (s *HandlerSuite) TestBulkAuditOverSelection() {
	s.do(http.MethodPut, "/selection", map[string]any{
		"items": []selection.Item{
			{ID: "M1", Type: domain.ItemMold},
			{ID: "C2", Type: domain.ItemCutter},
		},
	})

	rec := s.do(http.MethodPost, "/audits/bulk", map[string]any{"operatorId": "E1"})

	require.Equal(s.T(), http.StatusOK, rec.Code)
	var result audit.BulkResult
	s.decodeBody(rec, &result)
	assert.Equal(s.T(), 2, result.SuccessCount)
	assert.Equal(s.T(), 0, result.FailCount)
}

func (s *HandlerSuite) TestBulkAuditEmptySelection() {
	rec := s.do(http.MethodPost, "/audits/bulk", map[string]any{"operatorId": "E1"})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestReplaceSelectionRejectsUnknownType() {
	rec := s.do(http.MethodPut, "/selection", map[string]any{
		"items": []map[string]any{{"id": "X1", "type": "WIDGET"}},
	})

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), 0, s.set.Len())
}

func (s *HandlerSuite) TestMismatchesAgainstQueryTarget() {
	s.do(http.MethodPut, "/selection", map[string]any{
		"items": []selection.Item{
			{ID: "M1", Type: domain.ItemMold, Snapshot: selection.Snapshot{RackLayerID: "5"}},
			{ID: "M2", Type: domain.ItemMold, Snapshot: selection.Snapshot{RackLayerID: "13"}},
		},
	})

	rec := s.do(http.MethodGet, "/selection/mismatches?target=1-3", nil)

	require.Equal(s.T(), http.StatusOK, rec.Code)
	var resp struct {
		Mismatches   []audit.Mismatch `json:"mismatches"`
		UnknownCount int              `json:"unknownCount"`
	}
	s.decodeBody(rec, &resp)
	require.Len(s.T(), resp.Mismatches, 1)
	assert.Equal(s.T(), "M1", resp.Mismatches[0].Item.ID)
}

func (s *HandlerSuite) TestQueuePendingAndFlush() {
	s.client.FailWith = &remote.TransientError{Op: "submit audit"}
	s.do(http.MethodPost, "/audits", map[string]any{
		"itemId":     "M1",
		"itemType":   string(domain.ItemMold),
		"operatorId": "E1",
	})

	rec := s.do(http.MethodGet, "/queue", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var pending struct {
		Count int `json:"count"`
	}
	s.decodeBody(rec, &pending)
	assert.Equal(s.T(), 1, pending.Count)

	s.client.FailWith = nil
	rec = s.do(http.MethodPost, "/queue/flush", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var flush queue.FlushResult
	s.decodeBody(rec, &flush)
	assert.Equal(s.T(), 1, flush.Flushed)
	assert.Equal(s.T(), 0, flush.Remaining)
}

func (s *HandlerSuite) TestConnectivityToggle() {
	rec := s.do(http.MethodPost, "/connectivity", map[string]any{"online": false})
	require.Equal(s.T(), http.StatusNoContent, rec.Code)
	assert.False(s.T(), s.conn.Online())

	rec = s.do(http.MethodPost, "/connectivity", map[string]any{"online": true})
	require.Equal(s.T(), http.StatusNoContent, rec.Code)
	assert.True(s.T(), s.conn.Online())
}

func (s *HandlerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestSessionNameCarriesDate() {
	rec := s.do(http.MethodPost, "/sessions", map[string]any{
		"mode":       string(session.ModeInstant),
		"operatorId": "E1",
	})

	var sess session.Session
	s.decodeBody(rec, &sess)
	assert.Contains(s.T(), sess.Name, time.Now().Format("20060102"))
}
