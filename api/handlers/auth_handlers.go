package handlers

import (
	"errors"
	"net/http"
	"strings"

	"drdesk/core/auth"
	"drdesk/core/store"
	"drdesk/core/utils"
	"drdesk/core/workflow"
)

type AuthHandler struct {
	auth   *auth.Authenticator
	audits store.AuditStore
	logger *utils.Logger
}

func NewAuthHandler(a *auth.Authenticator, audits store.AuditStore, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{auth: a, audits: audits, logger: logger}
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(payload.Username) == "" || payload.Password == "" {
		writeErrorCode(w, http.StatusBadRequest, workflow.ErrorCodeValidation, "Username and password required")
		return
	}
	user, err := h.auth.Verify(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Printf("AUTH login failed user=%s", payload.Username)
			writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
			return
		}
		writeError(w, h.logger, workflow.NewDomainError(workflow.ErrorCodeStoreUnavailable, "login", err))
		return
	}
	ctx := auth.WithUser(r.Context(), user)
	auditLog(ctx, h.audits, h.logger, "auth.login", "")
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    user.UserID,
		"username":   user.Username,
		"department": user.Department,
		"roles":      user.Roles,
	})
}
