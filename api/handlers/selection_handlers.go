package handlers

import (
	"fmt"
	"net/http"

	"drdesk/core/store"
	"drdesk/core/utils"
	"drdesk/core/workflow"
)

type SelectionHandler struct {
	svc    *workflow.Service
	audits store.AuditStore
	logger *utils.Logger
}

func NewSelectionHandler(svc *workflow.Service, audits store.AuditStore, logger *utils.Logger) *SelectionHandler {
	return &SelectionHandler{svc: svc, audits: audits, logger: logger}
}

// selectionPayload accepts both the structured departments list and the
// intake form's parallel tableDepartments/checkedStates arrays.
type selectionPayload struct {
	SiteCode         string                         `json:"site_code"`
	SelectedDept     string                         `json:"selected_dept"`
	IncidentType     string                         `json:"incident_type"`
	Departments      []workflow.DepartmentSelection `json:"departments"`
	LegacyDept       string                         `json:"selectedDept"`
	LegacyType       string                         `json:"selectedIncident"`
	TableDepartments []string                       `json:"tableDepartments"`
	CheckedStates    []struct {
		Approval bool `json:"approval"`
		Informed bool `json:"informed"`
	} `json:"checkedStates"`
}

func (p selectionPayload) request() workflow.CreateIncidentRequest {
	req := workflow.CreateIncidentRequest{
		SiteCode:     p.SiteCode,
		SelectedDept: p.SelectedDept,
		IncidentType: p.IncidentType,
		Departments:  p.Departments,
	}
	if req.SelectedDept == "" {
		req.SelectedDept = p.LegacyDept
	}
	if req.IncidentType == "" {
		req.IncidentType = p.LegacyType
	}
	for i, dept := range p.TableDepartments {
		if i >= len(p.CheckedStates) {
			break
		}
		req.Departments = append(req.Departments, workflow.DepartmentSelection{
			Department: dept,
			Approval:   p.CheckedStates[i].Approval,
			Informed:   p.CheckedStates[i].Informed,
		})
	}
	return req
}

func (h *SelectionHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListSelections(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *SelectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload selectionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := h.svc.CreateIncident(r.Context(), payload.request())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	auditLog(r.Context(), h.audits, h.logger, "incident.create", fmt.Sprintf("%s dept=%s", id, payload.request().SelectedDept))
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Department selections saved", "incident_id": id})
}
