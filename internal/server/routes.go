package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/models"
	"github.com/shelfgrade/shelfgrade/internal/services/evaluation"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System. /health is unprefixed because the agent connectivity probe
	// hits it before any API traffic.
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Auth
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("/api/auth/validate", s.handleAuthValidate)

	// Evaluations
	mux.HandleFunc("/api/evaluations/export", s.handleEvaluationsExport)
	mux.HandleFunc("/api/evaluations/", s.routeEvaluations)
	mux.HandleFunc("/api/evaluations", s.handleEvaluations)

	// Settings
	mux.HandleFunc("/api/settings/thresholds", s.handleSettingsThresholds)
	mux.HandleFunc("/api/settings/history/", s.handleSettingsHistory)
	mux.HandleFunc("/api/settings", s.handleSettings)

	// Store directory
	mux.HandleFunc("/api/stores/import", s.handleStoreImport)
	mux.HandleFunc("/api/stores/", s.routeStores)
	mux.HandleFunc("/api/stores", s.handleStores)

	// Photos
	mux.HandleFunc("/api/photos/", s.handlePhotoGet)

	// Users
	mux.HandleFunc("/api/users", s.handleUserCreate)
	mux.HandleFunc("/api/admin/users/", s.routeAdminUsers)
	mux.HandleFunc("/api/admin/users", s.handleAdminListUsers)
}

// routeEvaluations dispatches /api/evaluations/{id}/* to the appropriate handler.
func (s *Server) routeEvaluations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/evaluations/")
	if path == "" {
		s.handleEvaluations(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "":
		s.handleEvaluationGet(w, r, id)
	case "override":
		s.handleEvaluationOverride(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeStores dispatches /api/stores/{code} to the appropriate handler.
func (s *Server) routeStores(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/api/stores/")
	if code == "" {
		s.handleStores(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleStoreGet(w, r, code)
	case http.MethodDelete:
		s.handleStoreDelete(w, r, code)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// routeAdminUsers dispatches /api/admin/users/{id}/{action} to the appropriate handler.
func (s *Server) routeAdminUsers(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	if path == "" {
		s.handleAdminListUsers(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 2 && parts[1] == "role" {
		s.handleAdminUpdateUserRole(w, r, parts[0])
		return
	}

	WriteError(w, http.StatusNotFound, "Not found")
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// --- Shared handler helpers ---

// requireRole enforces a minimum role tier before any handler side effect.
// Missing authentication yields 401; an insufficient role yields 403.
func requireRole(w http.ResponseWriter, r *http.Request, role string) bool {
	if common.ActorHasRole(r.Context(), role) {
		return true
	}
	if common.ActorFromContext(r.Context()) == nil {
		writeBearerChallenge(w, "authentication required")
	} else {
		WriteErrorWithCode(w, http.StatusForbidden, "insufficient role", "forbidden")
	}
	return false
}

// writeServiceError maps service-layer errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, logger *common.Logger, err error) {
	var verr *evaluation.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteErrorWithCode(w, http.StatusBadRequest, verr.Error(), "validation")
	case errors.Is(err, models.ErrForbidden):
		WriteErrorWithCode(w, http.StatusForbidden, "insufficient role", "forbidden")
	case errors.Is(err, models.ErrNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, "not found", "not_found")
	default:
		logger.Error().Err(err).Msg("Request failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
