package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"MaizeAIBackend/database"
	"MaizeAIBackend/models"
)

type ApprovalRequestBody struct {
	Reason string `json:"reason"`
}

// RequestAdminAccess - POST /api/approvals
func (h *Handler) RequestAdminAccess(w http.ResponseWriter, r *http.Request) {
	_, user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if user.Role == models.RoleAdmin {
		respondWithError(w, http.StatusConflict, "You are already an admin")
		return
	}

	var body ApprovalRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	req, err := models.NewApprovalRequest(user.ID, body.Reason)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Reason is required")
		return
	}
	err = h.Approvals.Create(r.Context(), req)
	if errors.Is(err, database.ErrDuplicate) {
		respondWithError(w, http.StatusConflict, "You already have a pending request")
		return
	}
	if err != nil {
		h.Log.Error("error creating approval request", zap.String("user_id", user.ID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to submit request")
		return
	}

	summary := user.Summary()
	req.User = &summary
	respondWithJSON(w, http.StatusCreated, req)
}
