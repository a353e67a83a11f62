package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"MaizeAIBackend/database"
	"MaizeAIBackend/listing"
	"MaizeAIBackend/models"
)

// GetDiseases - GET /api/diseases?q=&risk=
func (h *Handler) GetDiseases(w http.ResponseWriter, r *http.Request) {
	diseases, err := h.Diseases.List(r.Context())
	if err != nil {
		h.Log.Error("error fetching diseases", zap.Error(err))
		respondWithJSON(w, http.StatusOK, listing.Failed[models.Disease]("Failed to load diseases"))
		return
	}
	q := listing.ParseQuery(r.URL.Query(), "risk")
	respondWithJSON(w, http.StatusOK, listing.NewPage(listing.Filter(diseases, q, listing.DiseaseFields)))
}

// GetDisease - GET /api/diseases/{id}
func (h *Handler) GetDisease(w http.ResponseWriter, r *http.Request) {
	disease, err := h.Diseases.GetByID(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, database.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Disease not found")
		return
	}
	if err != nil {
		h.Log.Error("error fetching disease", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	respondWithJSON(w, http.StatusOK, disease)
}
