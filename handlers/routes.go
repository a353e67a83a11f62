package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"MaizeAIBackend/middleware"
	"MaizeAIBackend/models"
)

// Routes registers the API on router.
func (h *Handler) Routes(router *mux.Router, authn *middleware.Authenticator) {
	// Public routes
	router.HandleFunc("/api/health", Health).Methods("GET")
	router.HandleFunc("/api/auth/signup", h.Signup).Methods("POST")
	router.HandleFunc("/api/auth/login", h.Login).Methods("POST")

	// Protected routes
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authn.Middleware)

	// Any signed-in role
	open := api.NewRoute().Subrouter()
	open.Use(middleware.RequireRole(models.RoleNone))
	open.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	open.HandleFunc("/session", h.GetSession).Methods("GET")
	open.HandleFunc("/profile", h.GetProfile).Methods("GET")
	open.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")
	open.HandleFunc("/profile/avatar", h.UploadAvatar).Methods("POST")
	open.HandleFunc("/diseases", h.GetDiseases).Methods("GET")
	open.HandleFunc("/diseases/{id}", h.GetDisease).Methods("GET")
	open.HandleFunc("/scans/history", h.GetScanHistory).Methods("GET")
	open.HandleFunc("/scans/{id}", h.GetScan).Methods("GET")
	open.HandleFunc("/approvals", h.RequestAdminAccess).Methods("POST")

	// Farmer routes (farmer or admin)
	farmer := api.NewRoute().Subrouter()
	farmer.Use(middleware.RequireRole(models.RoleFarmer))
	farmer.HandleFunc("/scans", h.SubmitScan).Methods("POST")

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.HandleFunc("/users", h.AdminGetUsers).Methods("GET")
	admin.HandleFunc("/users/{id}/role", h.AdminUpdateUserRole).Methods("PUT")
	admin.HandleFunc("/approvals", h.AdminGetApprovals).Methods("GET")
	admin.HandleFunc("/approvals/{id}", h.AdminResolveApproval).Methods("PUT")
	admin.HandleFunc("/stats", h.AdminGetStats).Methods("GET")
}

// Health - GET /api/health
func Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "MaizeAI Backend",
	})
}
