package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"MaizeAIBackend/auth"
	"MaizeAIBackend/database"
	"MaizeAIBackend/middleware"
	"MaizeAIBackend/models"
	"MaizeAIBackend/scan"
	"MaizeAIBackend/session"
	"MaizeAIBackend/storage"
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	Accounts  *auth.Service
	Tokens    *middleware.TokenManager
	Revoked   session.RevocationList
	Sessions  *session.Manager
	Users     database.UserRepository
	Diseases  database.DiseaseRepository
	Scans     database.ScanRepository
	Approvals database.ApprovalRepository
	Stats     database.StatsRepository
	Workflow  *scan.Workflow
	Store     storage.ObjectStore
	Log       *zap.Logger
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// currentUser returns the caller's session and profile. RequireRole has
// already run, so a missing session is a wiring bug and answers 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*session.Session, models.User, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, models.User{}, false
	}
	u, ok := s.User()
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, models.User{}, false
	}
	return s, u, true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// pathID reads the {id} route variable and answers 404 when it is not a UUID.
func pathID(w http.ResponseWriter, r *http.Request, notFound string) (string, bool) {
	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		respondWithError(w, http.StatusNotFound, notFound)
		return "", false
	}
	return id, true
}
