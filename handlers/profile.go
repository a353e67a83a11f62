package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"MaizeAIBackend/database"
	"MaizeAIBackend/models"
	"MaizeAIBackend/scan"
	"MaizeAIBackend/session"
)

// GetProfile - GET /api/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	_, user, ok := currentUser(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// UpdateProfile - PUT /api/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	s, user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Empty() {
		respondWithError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		respondWithError(w, http.StatusBadRequest, "Name cannot be empty")
		return
	}

	h.saveProfile(w, r, s, user.ID, req)
}

// UploadAvatar - POST /api/profile/avatar (multipart/form-data, field "avatar")
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	s, user, ok := currentUser(w, r)
	if !ok {
		return
	}

	file, header, contentType, ok := readImage(w, r, "avatar")
	if !ok {
		return
	}
	defer file.Close()

	key := scan.Key("avatars", user.ID, header.Filename, contentType, time.Now())
	if err := h.Store.Put(r.Context(), key, file, contentType); err != nil {
		h.Log.Error("error storing avatar", zap.String("user_id", user.ID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to save picture")
		return
	}

	url := h.Store.PublicURL(key)
	if !h.saveProfile(w, r, s, user.ID, models.ProfileUpdate{AvatarURL: &url}) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
		defer cancel()
		if err := h.Store.Delete(ctx, key); err != nil {
			h.Log.Warn("error removing orphaned avatar", zap.String("key", key), zap.Error(err))
		}
	}
}

// saveProfile writes the response and reports whether the update was stored.
func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request, s *session.Session, userID string, upd models.ProfileUpdate) bool {
	updated, err := h.Users.UpdateProfile(r.Context(), userID, upd)
	if errors.Is(err, database.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "User not found")
		return false
	}
	if err != nil {
		h.Log.Error("error updating profile", zap.String("user_id", userID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to update profile")
		return false
	}
	s.SetUser(*updated)
	respondWithJSON(w, http.StatusOK, updated)
	return true
}

// readImage pulls an image part out of a multipart request and validates
// it. A missing or generic content type is sniffed from the first bytes.
func readImage(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, scan.MaxImageSize*2)
	if err := r.ParseMultipartForm(scan.MaxImageSize); err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			respondWithError(w, http.StatusRequestEntityTooLarge, scan.ErrTooLarge.Error())
		} else {
			respondWithError(w, http.StatusBadRequest, "Failed to parse form")
		}
		return nil, nil, "", false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Image file is required")
		return nil, nil, "", false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		buf := make([]byte, 512)
		n, _ := io.ReadFull(file, buf)
		contentType = http.DetectContentType(buf[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			respondWithError(w, http.StatusInternalServerError, "Failed to read image")
			return nil, nil, "", false
		}
	}

	if err := scan.ValidateImage(contentType, header.Size); err != nil {
		file.Close()
		code := http.StatusUnsupportedMediaType
		if errors.Is(err, scan.ErrTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		respondWithError(w, code, err.Error())
		return nil, nil, "", false
	}
	return file, header, contentType, true
}
