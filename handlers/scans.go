package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"MaizeAIBackend/database"
	"MaizeAIBackend/listing"
	"MaizeAIBackend/models"
	"MaizeAIBackend/scan"
)

// SubmitScan - POST /api/scans (multipart/form-data: image, location, notes)
func (h *Handler) SubmitScan(w http.ResponseWriter, r *http.Request) {
	s, user, ok := currentUser(w, r)
	if !ok {
		return
	}

	file, header, contentType, ok := readImage(w, r, "image")
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.Workflow.Submit(r.Context(), s, scan.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
		Location:    r.FormValue("location"),
		Notes:       r.FormValue("notes"),
	})
	switch {
	case errors.Is(err, scan.ErrTooLarge):
		respondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, scan.ErrNotImage):
		respondWithError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.Is(err, scan.ErrStorageFailed):
		respondWithError(w, http.StatusBadGateway, "Failed to upload image")
		return
	case err != nil:
		h.Log.Error("scan submission failed", zap.String("user_id", user.ID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to save scan")
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}

// GetScanHistory - GET /api/scans/history?q=&status=
func (h *Handler) GetScanHistory(w http.ResponseWriter, r *http.Request) {
	s, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	q := listing.ParseQuery(r.URL.Query(), "status")
	respondWithJSON(w, http.StatusOK, listing.NewPage(listing.Filter(s.History(), q, listing.ScanFields)))
}

// GetScan - GET /api/scans/{id}
// Scans of other users are reported as missing unless the caller is an admin.
func (h *Handler) GetScan(w http.ResponseWriter, r *http.Request) {
	_, user, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r, "Scan not found")
	if !ok {
		return
	}

	result, err := h.Scans.GetByID(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Scan not found")
		return
	}
	if err != nil {
		h.Log.Error("error fetching scan", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if result.UserID != user.ID && user.Role != models.RoleAdmin {
		respondWithError(w, http.StatusNotFound, "Scan not found")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
