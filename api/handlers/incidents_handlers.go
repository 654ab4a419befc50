package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"drdesk/core/auth"
	"drdesk/core/store"
	"drdesk/core/utils"
	"drdesk/core/workflow"
)

type IncidentsHandler struct {
	svc    *workflow.Service
	audits store.AuditStore
	logger *utils.Logger
}

func NewIncidentsHandler(svc *workflow.Service, audits store.AuditStore, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{svc: svc, audits: audits, logger: logger}
}

type statusPayload struct {
	IncidentID string `json:"incident_id"`
	Status     string `json:"status"`
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetIncident(r.Context(), incidentIDParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *IncidentsHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListPending(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *IncidentsHandler) ListRejected(w http.ResponseWriter, r *http.Request) {
	h.listQueue(w, r, workflow.StatusRejected)
}

func (h *IncidentsHandler) ListActionRequired(w http.ResponseWriter, r *http.Request) {
	h.listQueue(w, r, workflow.StatusActionRequired)
}

func (h *IncidentsHandler) listQueue(w http.ResponseWriter, r *http.Request, status workflow.Status) {
	items, err := h.svc.ListQueue(r.Context(), string(status))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *IncidentsHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	raw := urlParam(r, "status")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	items, err := h.svc.ListByStatus(r.Context(), raw)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *IncidentsHandler) NextStep(w http.ResponseWriter, r *http.Request) {
	id := incidentIDParam(r)
	step, err := h.svc.ResolveNextStep(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident_id": id, "next_step": step})
}

// UpdateStatus takes the id from the query string; ids contain '|' and never
// travel as a path segment.
func (h *IncidentsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, err)
		return
	}
	id := incidentIDParam(r)
	if id == "" {
		id = payload.IncidentID
	}
	view, err := h.svc.SetStatus(r.Context(), id, payload.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.log(r.Context(), "incident.status", fmt.Sprintf("%s -> %s", view.IncidentID, view.Status))
	writeJSON(w, http.StatusOK, view)
}

// UpdateStatusCompat is the older POST form: id and status both in the body,
// and a short acknowledgement instead of the header.
func (h *IncidentsHandler) UpdateStatusCompat(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(payload.IncidentID) == "" || strings.TrimSpace(payload.Status) == "" {
		writeErrorCode(w, http.StatusBadRequest, workflow.ErrorCodeValidation, "incident_id and status required")
		return
	}
	view, err := h.svc.SetStatus(r.Context(), payload.IncidentID, payload.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.log(r.Context(), "incident.status", fmt.Sprintf("%s -> %s", view.IncidentID, view.Status))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Status updated",
		"incident_id": view.IncidentID,
		"status":      view.Status,
	})
}

func (h *IncidentsHandler) MarkPending(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.MarkPending(r.Context(), incidentIDParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.log(r.Context(), "incident.mark_pending", view.IncidentID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Marked pending", "incident_id": view.IncidentID})
}

func (h *IncidentsHandler) log(ctx context.Context, action, details string) {
	auditLog(ctx, h.audits, h.logger, action, details)
}

func auditLog(ctx context.Context, audits store.AuditStore, logger *utils.Logger, action, details string) {
	if audits == nil {
		return
	}
	username := ""
	if u, ok := auth.UserFromContext(ctx); ok {
		username = u.Username
	}
	if err := audits.Log(ctx, username, action, details); err != nil {
		logger.Warnf("audit %s failed: %v", action, err)
	}
}
