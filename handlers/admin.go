package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"MaizeAIBackend/database"
	"MaizeAIBackend/listing"
	"MaizeAIBackend/models"
)

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type ResolveApprovalRequest struct {
	Status models.ApprovalStatus `json:"status"`
}

// ==================== ADMIN - USER MANAGEMENT ====================

// AdminGetUsers - GET /api/admin/users?q=&role=
func (h *Handler) AdminGetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		h.Log.Error("error fetching users", zap.Error(err))
		respondWithJSON(w, http.StatusOK, listing.Failed[models.User]("Failed to load users"))
		return
	}
	q := listing.ParseQuery(r.URL.Query(), "role")
	respondWithJSON(w, http.StatusOK, listing.NewPage(listing.Filter(users, q, listing.UserFields)))
}

// AdminUpdateUserRole - PUT /api/admin/users/{id}/role
// Admin changes a user's role. Admins cannot change their own role.
func (h *Handler) AdminUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	_, admin, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "User not found")
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Role must be user, farmer, or admin")
		return
	}
	if id == admin.ID {
		respondWithError(w, http.StatusBadRequest, "You cannot change your own role")
		return
	}

	err = h.Users.UpdateRole(r.Context(), id, role)
	if errors.Is(err, database.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.Log.Error("error updating role", zap.String("user_id", id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to update role")
		return
	}
	h.Sessions.Invalidate(id)
	h.Log.Info("role changed", zap.String("user_id", id), zap.String("role", string(role)), zap.String("by", admin.ID))

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user_id": id,
		"role":    role,
	})
}

// ==================== ADMIN - APPROVALS ====================

// AdminGetApprovals - GET /api/admin/approvals?q=&status=
func (h *Handler) AdminGetApprovals(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Approvals.List(r.Context())
	if err != nil {
		h.Log.Error("error fetching approval requests", zap.Error(err))
		respondWithJSON(w, http.StatusOK, listing.Failed[models.AdminApprovalRequest]("Failed to load approval requests"))
		return
	}
	q := listing.ParseQuery(r.URL.Query(), "status")
	respondWithJSON(w, http.StatusOK, listing.NewPage(listing.Filter(requests, q, listing.ApprovalFields)))
}

// AdminResolveApproval - PUT /api/admin/approvals/{id}
// Approving promotes the requester to admin.
func (h *Handler) AdminResolveApproval(w http.ResponseWriter, r *http.Request) {
	_, admin, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r, "Request not found")
	if !ok {
		return
	}

	var req ResolveApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resolved, err := h.Approvals.Resolve(r.Context(), id, req.Status, admin.ID, time.Now())
	switch {
	case errors.Is(err, models.ErrInvalidResolution):
		respondWithError(w, http.StatusBadRequest, "Status must be approved or rejected")
		return
	case errors.Is(err, models.ErrAlreadyResolved):
		respondWithError(w, http.StatusConflict, "Request has already been resolved")
		return
	case errors.Is(err, database.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Request not found")
		return
	case err != nil:
		h.Log.Error("error resolving approval", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to resolve request")
		return
	}

	if resolved.Status == models.ApprovalApproved {
		h.Sessions.Invalidate(resolved.UserID)
	}
	respondWithJSON(w, http.StatusOK, resolved)
}

// ==================== ADMIN - DASHBOARD ====================

// AdminGetStats - GET /api/admin/stats
func (h *Handler) AdminGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Stats.Dashboard(r.Context())
	if err != nil {
		h.Log.Error("error fetching dashboard stats", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load dashboard stats")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
