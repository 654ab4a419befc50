package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"drdesk/core/utils"
	"drdesk/core/workflow"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeError maps domain error codes to HTTP statuses. Anything untyped is an
// internal error and its text is not echoed back.
func writeError(w http.ResponseWriter, logger *utils.Logger, err error) {
	de, ok := workflow.AsDomainError(err)
	if !ok {
		logger.Errorf("unhandled error: %v", err)
		writeErrorCode(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	status := http.StatusInternalServerError
	switch de.Code {
	case workflow.ErrorCodeValidation:
		status = http.StatusBadRequest
	case workflow.ErrorCodeNotFound:
		status = http.StatusNotFound
	case workflow.ErrorCodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	case workflow.ErrorCodePartialWrite:
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		logger.Errorf("%v", de)
	}
	writeErrorCode(w, status, de.Code, de.Message)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return workflow.NewDomainError(workflow.ErrorCodeValidation, "request body is required", nil)
		}
		return workflow.NewDomainError(workflow.ErrorCodeValidation, "invalid json", err)
	}
	return nil
}

func incidentIDParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("incident_id"))
}
