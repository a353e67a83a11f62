package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"MaizeAIBackend/auth"
	"MaizeAIBackend/middleware"
	"MaizeAIBackend/models"
	"MaizeAIBackend/retry"
	"MaizeAIBackend/session"
)

type AuthResponse struct {
	Token  string       `json:"token"`
	UserID string       `json:"user_id"`
	Role   string       `json:"role"`
	User   *models.User `json:"user"`
}

type SessionResponse struct {
	State   string              `json:"state"`
	User    models.User         `json:"user"`
	History []models.ScanResult `json:"history"`
}

// Signup - POST /api/auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var signup models.UserSignup
	if err := json.NewDecoder(r.Body).Decode(&signup); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, err := h.Accounts.Signup(r.Context(), signup)
	var exhausted *retry.ExhaustedError
	switch {
	case errors.Is(err, auth.ErrInvalidSignup):
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, "Email already registered")
		return
	case errors.As(err, &exhausted):
		respondWithError(w, http.StatusServiceUnavailable, "Signup failed after multiple attempts, please try again later")
		return
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, "Error creating user")
		return
	}

	h.respondWithToken(w, http.StatusCreated, user)
}

// Login - POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var login models.UserLogin
	if err := json.NewDecoder(r.Body).Decode(&login); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if login.Email == "" || login.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.Accounts.Login(r.Context(), login.Email, login.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		h.Log.Error("login failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	h.respondWithToken(w, http.StatusOK, user)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, code int, user *models.User) {
	token, err := h.Tokens.Generate(*user)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error generating token")
		return
	}
	respondWithJSON(w, code, AuthResponse{
		Token:  token,
		UserID: user.ID,
		Role:   string(user.Role),
		User:   user,
	})
}

// Logout - POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := h.Revoked.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		h.Log.Error("error revoking token", zap.String("user_id", claims.UserID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Error signing out")
		return
	}
	h.Sessions.End(claims.UserID)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"redirect": session.LoginPath,
	})
}

// GetSession - GET /api/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, user, ok := currentUser(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, SessionResponse{
		State:   session.StateAuthorized.String(),
		User:    user,
		History: s.History(),
	})
}
