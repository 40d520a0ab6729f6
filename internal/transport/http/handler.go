// Package httptransport is the thin HTTP layer over the audit engine. It
// delegates to the session manager, write pipeline, bulk coordinator, and
// offline queue without embedding business logic, so transport concerns stay
// isolated.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stocktake/internal/audit"
	"stocktake/internal/audit/queue"
	"stocktake/internal/domain"
	"stocktake/internal/remote"
	"stocktake/internal/selection"
	"stocktake/internal/session"
	dErrors "stocktake/pkg/domain-errors"
	"stocktake/pkg/platform/httputil"
)

// Handler exposes the engine operations over HTTP.
type Handler struct {
	logger      *slog.Logger
	sessions    *session.Manager
	pipeline    *audit.Pipeline
	coordinator *audit.Coordinator
	queue       *queue.Queue
	set         *selection.Set
	conn        *remote.Connectivity
}

// New creates the engine HTTP handler.
func New(
	logger *slog.Logger,
	sessions *session.Manager,
	pipeline *audit.Pipeline,
	coordinator *audit.Coordinator,
	q *queue.Queue,
	set *selection.Set,
	conn *remote.Connectivity,
) *Handler {
	return &Handler{
		logger:      logger,
		sessions:    sessions,
		pipeline:    pipeline,
		coordinator: coordinator,
		queue:       q,
		set:         set,
		conn:        conn,
	}
}

// Register wires all engine routes onto the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions", h.handleStartSession)
	r.Post("/sessions/end", h.handleEndSession)
	r.Put("/sessions/target", h.handleUpdateTarget)
	r.Get("/sessions/current", h.handleCurrentSession)
	r.Get("/sessions/history", h.handleSessionHistory)
	r.Get("/sessions/operator", h.handleLastOperator)

	r.Post("/audits", h.handleAuditSingle)
	r.Post("/relocations", h.handleRelocate)
	r.Post("/audits/bulk", h.handleAuditBulk)

	r.Put("/selection", h.handleReplaceSelection)
	r.Get("/selection/mismatches", h.handleMismatches)

	r.Get("/queue", h.handleQueuePending)
	r.Post("/queue/flush", h.handleQueueFlush)
	r.Post("/connectivity", h.handleConnectivity)

	r.Get("/healthz", h.handleHealth)
}

type startSessionRequest struct {
	Mode              string `json:"mode"`
	OperatorID        string `json:"operatorId"`
	OperatorName      string `json:"operatorName"`
	Note              string `json:"note"`
	TargetRackLayerID string `json:"targetRackLayerId"`
	CompareEnabled    bool   `json:"compareEnabled"`
	Name              string `json:"name"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	sess, err := h.sessions.Start(r.Context(), session.StartParams{
		Mode:              session.Mode(req.Mode),
		OperatorID:        req.OperatorID,
		OperatorName:      req.OperatorName,
		Note:              req.Note,
		TargetRackLayerID: req.TargetRackLayerID,
		CompareEnabled:    req.CompareEnabled,
		ExplicitName:      req.Name,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.sessions.End(r.Context(), req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RackLayerID    string `json:"rackLayerId"`
		CompareEnabled bool   `json:"compareEnabled"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.sessions.UpdateTarget(r.Context(), req.RackLayerID, req.CompareEnabled); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCurrentSession(w http.ResponseWriter, _ *http.Request) {
	sess, ok := h.sessions.Active()
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no active session"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.sessions.History(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load session history"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) handleLastOperator(w http.ResponseWriter, r *http.Request) {
	op, ok, err := h.sessions.LastOperator(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load last operator"))
		return
	}
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no operator recorded"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, op)
}

type auditRequest struct {
	ItemID     string `json:"itemId"`
	ItemType   string `json:"itemType"`
	OperatorID string `json:"operatorId"`
	AuditDate  string `json:"auditDate"`
	Notes      string `json:"notes"`
}

func (h *Handler) handleAuditSingle(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if !h.decode(w, r, &req) {
		return
	}
	itemType, ok := parseItemType(w, req.ItemType)
	if !ok {
		return
	}

	outcome := h.pipeline.AuditSingle(r.Context(), req.ItemID, itemType, audit.SingleOptions{
		OperatorID: req.OperatorID,
		AuditDate:  req.AuditDate,
		Notes:      req.Notes,
	})
	writeOutcome(w, outcome)
}

type relocateRequest struct {
	ItemID         string `json:"itemId"`
	ItemType       string `json:"itemType"`
	NewRackLayerID string `json:"newRackLayerId"`
	OldRackLayerID string `json:"oldRackLayerId"`
	OperatorID     string `json:"operatorId"`
	Notes          string `json:"notes"`
	SkipAudit      bool   `json:"skipAudit"`
}

func (h *Handler) handleRelocate(w http.ResponseWriter, r *http.Request) {
	var req relocateRequest
	if !h.decode(w, r, &req) {
		return
	}
	itemType, ok := parseItemType(w, req.ItemType)
	if !ok {
		return
	}

	outcome := h.pipeline.RelocateAndAudit(r.Context(), req.ItemID, itemType, req.NewRackLayerID, audit.RelocateOptions{
		OperatorID:     req.OperatorID,
		OldRackLayerID: req.OldRackLayerID,
		Notes:          req.Notes,
		SkipAudit:      req.SkipAudit,
	})
	writeOutcome(w, outcome)
}

type bulkRequest struct {
	UseBatch   bool   `json:"useBatch"`
	OperatorID string `json:"operatorId"`
	Notes      string `json:"notes"`
}

// handleAuditBulk runs a bulk audit over the current selection. The run is
// synchronous; progress and completion signals stream through the event bus.
func (h *Handler) handleAuditBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.coordinator.AuditMany(r.Context(), h.set.Items(), audit.BulkOptions{
		UseBatch:   req.UseBatch,
		OperatorID: req.OperatorID,
		Notes:      req.Notes,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleReplaceSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []selection.Item `json:"items"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	for _, item := range req.Items {
		if !item.Type.Valid() {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "unknown item type %q", item.Type))
			return
		}
	}
	h.set.Replace(req.Items)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMismatches(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		if sess, ok := h.sessions.Active(); ok {
			target = sess.TargetRackLayerID
		}
	}

	mismatches, unknown := audit.CollectMismatches(h.set.Items(), target)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"mismatches":   mismatches,
		"unknownCount": unknown,
	})
}

func (h *Handler) handleQueuePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queue.Pending(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load pending queue"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"pending": pending,
		"count":   len(pending),
	})
}

func (h *Handler) handleQueueFlush(w http.ResponseWriter, r *http.Request) {
	result, err := h.queue.Flush(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "flush queue"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleConnectivity records the reachability signal from collaborators.
// Flipping back online triggers a queue flush through the restored hook.
func (h *Handler) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online bool `json:"online"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	h.conn.SetOnline(req.Online)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid request body"))
		return false
	}
	return true
}

func parseItemType(w http.ResponseWriter, raw string) (domain.ItemType, bool) {
	itemType := domain.ItemType(raw)
	if !itemType.Valid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "unknown item type %q", raw))
		return "", false
	}
	return itemType, true
}

// writeOutcome maps a write outcome to a response: 200 for success, 202 for
// queued-for-later, and the mapped domain error status otherwise.
func writeOutcome(w http.ResponseWriter, outcome audit.Outcome) {
	switch {
	case outcome.Success:
		httputil.WriteJSON(w, http.StatusOK, outcome)
	case outcome.Queued:
		httputil.WriteJSON(w, http.StatusAccepted, outcome)
	default:
		httputil.WriteError(w, outcome.Err)
	}
}
