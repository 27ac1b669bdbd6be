package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/rbac"
)

// ─── Request Types ─────────────────────────────────────────────────

type createUserRequest struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	IsActive  *bool    `json:"is_active,omitempty"`
	RoleIDs   []string `json:"role_ids,omitempty"`
}

type updateUserRequest struct {
	Username  *string   `json:"username,omitempty"`
	Email     *string   `json:"email,omitempty"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	IsActive  *bool     `json:"is_active,omitempty"`
	Password  *string   `json:"password,omitempty"`
	RoleIDs   *[]string `json:"role_ids,omitempty"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

// Pagination defaults for user listing.
const (
	defaultPage    = 1
	defaultPerPage = 10
)

// ─── Handlers ──────────────────────────────────────────────────────

// handleListUsers returns a page of user accounts with pagination metadata.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", defaultPage)
	perPage := queryInt(r, "per_page", defaultPerPage)
	if page < 1 {
		page = defaultPage
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}

	users, total, err := s.users.List(r.Context(), page, perPage)
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users":        users,
		"total":        total,
		"pages":        (total + perPage - 1) / perPage,
		"current_page": page,
	})
}

// handleCreateUser creates a new user account, optionally with roles.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	required := []struct{ name, value string }{
		{"username", req.Username},
		{"email", req.Email},
		{"password", req.Password},
	}
	for _, field := range required {
		if field.value == "" {
			writeBadRequest(w, field.name+" is required")
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	user := &rbac.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     isActive,
	}

	if err := s.users.Create(r.Context(), user, req.RoleIDs); err != nil {
		switch {
		case errors.Is(err, rbac.ErrUsernameExists):
			writeBadRequest(w, "Username already exists")
		case errors.Is(err, rbac.ErrEmailExists):
			writeBadRequest(w, "Email already exists")
		default:
			s.logger.Error("create user failed", "error", err)
			writeInternalError(w, "failed to create user")
		}
		return
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username,
		"created_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    user,
	})
}

// handleGetUser returns a single user by ID.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		s.logger.Error("get user failed", "error", err)
		writeInternalError(w, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// handleUpdateUser modifies a user's mutable fields. A password field
// re-hashes the credential; a role_ids field replaces the role set wholesale.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) { //nolint:gocognit,gocyclo // user update: field patching + password rotation + role replacement pipeline
	id := chi.URLParam(r, "id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		s.logger.Error("get user for update failed", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	// Apply patches
	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, rbac.ErrUsernameExists):
			writeBadRequest(w, "Username already exists")
		case errors.Is(err, rbac.ErrEmailExists):
			writeBadRequest(w, "Email already exists")
		default:
			s.logger.Error("update user failed", "error", err)
			writeInternalError(w, "failed to update user")
		}
		return
	}

	if req.Password != nil && *req.Password != "" {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.logger.Error("hash password failed", "error", err)
			writeInternalError(w, "failed to update user")
			return
		}
		if err := s.users.UpdatePassword(r.Context(), id, hash); err != nil {
			s.logger.Error("update password failed", "error", err)
			writeInternalError(w, "failed to update user")
			return
		}
	}

	if req.RoleIDs != nil {
		if err := s.users.SetRoles(r.Context(), id, *req.RoleIDs); err != nil {
			s.logger.Error("set user roles failed", "error", err)
			writeInternalError(w, "failed to update user")
			return
		}
	}

	// Re-read so the response reflects the updated role and permission graph
	user, err = s.users.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("reload user after update failed", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	s.logger.Info("user updated", "user_id", id, "updated_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    user,
	})
}

// handleDeleteUser removes a user account. Role assignments cascade; the
// authenticated user cannot delete their own account.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current := userFromContext(r.Context())

	if id == current.ID {
		writeBadRequest(w, "Cannot delete your own account")
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		s.logger.Error("delete user failed", "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	s.logger.Info("user deleted", "user_id", id, "deleted_by", current.ID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "User deleted successfully"})
}

// handleAssignRole grants a single role to a user.
func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.RoleID == "" {
		writeBadRequest(w, "role_id is required")
		return
	}

	if _, err := s.users.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		s.logger.Error("get user for role assignment failed", "error", err)
		writeInternalError(w, "failed to assign role")
		return
	}

	role, err := s.roles.GetByID(r.Context(), req.RoleID)
	if err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			writeNotFound(w, "Role not found")
			return
		}
		s.logger.Error("get role for assignment failed", "error", err)
		writeInternalError(w, "failed to assign role")
		return
	}

	if err := s.users.AddRole(r.Context(), id, req.RoleID); err != nil {
		if errors.Is(err, rbac.ErrAssociationExists) {
			writeBadRequest(w, "User already has this role")
			return
		}
		s.logger.Error("assign role failed", "error", err)
		writeInternalError(w, "failed to assign role")
		return
	}

	// Re-read so the response reflects the new grant
	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("reload user after role assignment failed", "error", err)
		writeInternalError(w, "failed to assign role")
		return
	}

	s.logger.Info("role assigned", "user_id", id, "role_id", role.ID,
		"assigned_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Role %s assigned to user %s", role.Name, user.Username),
		"user":    user,
	})
}

// handleRemoveRole revokes a single role from a user.
func (s *Server) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	roleID := chi.URLParam(r, "role_id")

	if _, err := s.users.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		s.logger.Error("get user for role removal failed", "error", err)
		writeInternalError(w, "failed to remove role")
		return
	}

	role, err := s.roles.GetByID(r.Context(), roleID)
	if err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			writeNotFound(w, "Role not found")
			return
		}
		s.logger.Error("get role for removal failed", "error", err)
		writeInternalError(w, "failed to remove role")
		return
	}

	if err := s.users.RemoveRole(r.Context(), id, roleID); err != nil {
		if errors.Is(err, rbac.ErrAssociationNotFound) {
			writeBadRequest(w, "User does not have this role")
			return
		}
		s.logger.Error("remove role failed", "error", err)
		writeInternalError(w, "failed to remove role")
		return
	}

	// Re-read so the response reflects the revoked grant
	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("reload user after role removal failed", "error", err)
		writeInternalError(w, "failed to remove role")
		return
	}

	s.logger.Info("role removed", "user_id", id, "role_id", role.ID,
		"removed_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Role %s removed from user %s", role.Name, user.Username),
		"user":    user,
	})
}

// queryInt parses an integer query parameter, falling back to a default.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
