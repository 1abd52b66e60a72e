package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// validRoles is the set of assignable account roles.
var validRoles = map[string]bool{
	models.RoleField:   true,
	models.RoleManager: true,
	models.RoleAdmin:   true,
	models.RoleService: true,
}

// handleUserCreate handles POST /api/users — admin provisioning of field,
// manager, and service accounts.
func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !requireRole(w, r, models.RoleAdmin) {
		return
	}

	var req struct {
		UserID   string `json:"user_id"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Region   string `json:"region"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		WriteError(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.Password == "" {
		WriteError(w, http.StatusBadRequest, "password is required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleField
	}
	if !validRoles[req.Role] {
		WriteError(w, http.StatusBadRequest, "invalid role: "+req.Role)
		return
	}

	store := s.app.Storage.InternalStore()
	if existing, err := store.GetUserByEmail(r.Context(), req.Email); err == nil && existing != nil {
		WriteErrorWithCode(w, http.StatusConflict, "a user with this email already exists", "conflict")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		WriteError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = "user_" + uuid.New().String()[:8]
	}
	user := &models.InternalUser{
		UserID:       userID,
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         req.Role,
		Region:       req.Region,
		CreatedAt:    time.Now(),
	}
	if err := store.SaveUser(r.Context(), user); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	s.logger.Info().
		Str("user_id", user.UserID).
		Str("role", user.Role).
		Str("actor", common.ResolveActorID(r.Context())).
		Msg("User created")

	WriteJSON(w, http.StatusCreated, userResponse(user))
}

// handleAdminListUsers handles GET /api/admin/users.
func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !requireRole(w, r, models.RoleAdmin) {
		return
	}

	users, err := s.app.Storage.InternalStore().ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(users))
	for _, user := range users {
		out = append(out, userResponse(user))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"users": out})
}

// handleAdminUpdateUserRole handles PUT /api/admin/users/{id}/role.
func (s *Server) handleAdminUpdateUserRole(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodPut, http.MethodPost) {
		return
	}
	if !requireRole(w, r, models.RoleAdmin) {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if !validRoles[req.Role] {
		WriteError(w, http.StatusBadRequest, "invalid role: "+req.Role)
		return
	}

	store := s.app.Storage.InternalStore()
	user, err := store.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	before := user.Role
	if before == req.Role {
		WriteJSON(w, http.StatusOK, userResponse(user))
		return
	}

	user.Role = req.Role
	if err := store.SaveUser(r.Context(), user); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	beforeRaw, _ := json.Marshal(map[string]string{"role": before})
	afterRaw, _ := json.Marshal(map[string]string{"role": req.Role})
	if auditErr := s.app.Storage.AuditStore().Append(r.Context(), &models.AuditRecord{
		Action:   models.AuditActionUserRoleChanged,
		EntityID: userID,
		Actor:    common.ResolveActorID(r.Context()),
		Before:   beforeRaw,
		After:    afterRaw,
	}); auditErr != nil {
		s.logger.Warn().Err(auditErr).Msg("Failed to append role change audit record")
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("before", before).
		Str("after", req.Role).
		Str("actor", common.ResolveActorID(r.Context())).
		Msg("User role changed")

	WriteJSON(w, http.StatusOK, userResponse(user))
}
