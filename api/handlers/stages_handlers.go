package handlers

import (
	"net/http"
	"strings"

	"drdesk/core/store"
	"drdesk/core/utils"
	"drdesk/core/workflow"
)

type StagesHandler struct {
	svc    *workflow.Service
	audits store.AuditStore
	logger *utils.Logger
}

func NewStagesHandler(svc *workflow.Service, audits store.AuditStore, logger *utils.Logger) *StagesHandler {
	return &StagesHandler{svc: svc, audits: audits, logger: logger}
}

func (h *StagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetStage(r.Context(), urlParam(r, "kind"), incidentIDParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make(map[string]any, len(rec.Payload)+3)
	for k, v := range rec.Payload {
		out[k] = v
	}
	out["incident_id"] = rec.IncidentID
	out["created_at"] = rec.CreatedAt
	out["updated_at"] = rec.UpdatedAt
	writeJSON(w, http.StatusOK, out)
}

// Save reads a flat JSON object; incident_id may come from the body or the
// query string.
func (h *StagesHandler) Save(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, err)
		return
	}
	id := incidentIDParam(r)
	if id == "" {
		if v, ok := payload["incident_id"].(string); ok {
			id = strings.TrimSpace(v)
		}
	}
	ack, err := h.svc.SaveStage(r.Context(), urlParam(r, "kind"), id, payload)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	auditLog(r.Context(), h.audits, h.logger, "stage.save", string(ack.Kind)+" "+ack.IncidentID)
	writeJSON(w, http.StatusOK, ack)
}
