package server

import (
	"net/http"
	"strings"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// handleSettings handles /api/settings (GET current values, PUT one key).
// Both are admin operations; thresholds have a read-only endpoint below
// for lower tiers.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSettingsList(w, r)
	case http.MethodPut:
		s.handleSettingsPut(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut)
	}
}

func (s *Server) handleSettingsList(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, models.RoleAdmin) {
		return
	}

	values, err := s.app.Storage.InternalStore().LatestSettings(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"settings": values})
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, models.RoleAdmin) {
		return
	}

	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		WriteError(w, http.StatusBadRequest, "key is required")
		return
	}

	actor := common.ResolveActorID(r.Context())
	if err := s.app.SettingsService.Set(r.Context(), req.Key, req.Value, actor); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"key":   req.Key,
		"value": req.Value,
	})
}

// handleSettingsThresholds handles GET /api/settings/thresholds — the
// resolved scoring rubric, readable by any authenticated user so capture
// clients can display the rubric in effect.
func (s *Server) handleSettingsThresholds(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !requireRole(w, r, models.RoleField) {
		return
	}

	thresholds, err := s.app.SettingsService.ScoringThresholds(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, thresholds)
}

// handleSettingsHistory handles GET /api/settings/history/{key} — the
// append-only event trail for one key, newest first.
func (s *Server) handleSettingsHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !requireRole(w, r, models.RoleAdmin) {
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/api/settings/history/")
	if key == "" {
		WriteError(w, http.StatusBadRequest, "key is required in path")
		return
	}
	limit := queryInt(r, "limit", 50)

	events, err := s.app.Storage.InternalStore().ListSettingEvents(r.Context(), key, limit)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	if events == nil {
		events = []*models.SettingEvent{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"key":    key,
		"events": events,
	})
}
