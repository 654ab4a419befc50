package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"drdesk/core/attachments"
	"drdesk/core/store"
	"drdesk/core/utils"
	"drdesk/core/workflow"
)

type AttachmentsHandler struct {
	svc      *attachments.Service
	audits   store.AuditStore
	logger   *utils.Logger
	maxBytes int64
}

func NewAttachmentsHandler(svc *attachments.Service, audits store.AuditStore, logger *utils.Logger, maxBytes int64) *AttachmentsHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &AttachmentsHandler{svc: svc, audits: audits, logger: logger, maxBytes: maxBytes}
}

func (h *AttachmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), incidentIDParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AttachmentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorCode(w, http.StatusRequestEntityTooLarge, workflow.ErrorCodeValidation, "file too large")
			return
		}
		writeErrorCode(w, http.StatusBadRequest, workflow.ErrorCodeValidation, "multipart form required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, workflow.ErrorCodeValidation, "file is required")
		return
	}
	defer file.Close()
	if header.Size == 0 {
		writeErrorCode(w, http.StatusBadRequest, workflow.ErrorCodeValidation, "empty file")
		return
	}
	att, err := h.svc.Upload(r.Context(), attachments.UploadRequest{
		IncidentID:  incidentIDParam(r),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	auditLog(r.Context(), h.audits, h.logger, "attachment.upload", fmt.Sprintf("%s %s", att.IncidentID, att.Filename))
	writeJSON(w, http.StatusCreated, att)
}

func (h *AttachmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	att, err := h.svc.Delete(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	auditLog(r.Context(), h.audits, h.logger, "attachment.delete", fmt.Sprintf("%s %s", att.IncidentID, att.Filename))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}
