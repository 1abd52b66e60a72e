package server

import (
	"net/http"
	"strings"

	"github.com/shelfgrade/shelfgrade/internal/models"
)

// handlePhotoGet handles GET /api/photos/{key} — serves a stored shelf
// photo. Keys contain a slash (evaluation id / filename), so everything
// after the prefix is the key.
func (s *Server) handlePhotoGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !requireRole(w, r, models.RoleField) {
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/api/photos/")
	if key == "" {
		WriteError(w, http.StatusBadRequest, "photo key is required in path")
		return
	}

	data, contentType, err := s.app.Storage.FileStore().GetFile(r.Context(), "photos", key)
	if err != nil {
		WriteErrorWithCode(w, http.StatusNotFound, "photo not found", "not_found")
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
