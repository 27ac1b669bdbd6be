package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gatehouse/internal/rbac"
)

// ─── Request Types ─────────────────────────────────────────────────

type createRoleRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permission_ids,omitempty"`
}

type updateRoleRequest struct {
	Name          *string   `json:"name,omitempty"`
	Description   *string   `json:"description,omitempty"`
	PermissionIDs *[]string `json:"permission_ids,omitempty"`
}

type assignPermissionRequest struct {
	PermissionID string `json:"permission_id"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListRoles returns all roles with their permission grants.
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.roles.List(r.Context())
	if err != nil {
		s.logger.Error("list roles failed", "error", err)
		writeInternalError(w, "failed to list roles")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"roles": roles,
		"count": len(roles),
	})
}

// handleCreateRole creates a new role, optionally with permission grants.
func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Name == "" {
		writeBadRequest(w, "Role name is required")
		return
	}

	role := &rbac.Role{
		Name:        req.Name,
		Description: req.Description,
	}

	if err := s.roles.Create(r.Context(), role, req.PermissionIDs); err != nil {
		if errors.Is(err, rbac.ErrRoleExists) {
			writeBadRequest(w, "Role already exists")
			return
		}
		s.logger.Error("create role failed", "error", err)
		writeInternalError(w, "failed to create role")
		return
	}

	s.logger.Info("role created", "role_id", role.ID, "name", role.Name,
		"created_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Role created successfully",
		"role":    role,
	})
}

// handleGetRole returns a single role by ID.
func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	role, err := s.roles.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			writeNotFound(w, "Role not found")
			return
		}
		s.logger.Error("get role failed", "error", err)
		writeInternalError(w, "failed to get role")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"role": role})
}

// handleUpdateRole modifies a role's name and description. A permission_ids
// field replaces the grant set wholesale.
func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	role, err := s.roles.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			writeNotFound(w, "Role not found")
			return
		}
		s.logger.Error("get role for update failed", "error", err)
		writeInternalError(w, "failed to update role")
		return
	}

	// Apply patches
	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}

	if err := s.roles.Update(r.Context(), role); err != nil {
		if errors.Is(err, rbac.ErrRoleExists) {
			writeBadRequest(w, "Role name already exists")
			return
		}
		s.logger.Error("update role failed", "error", err)
		writeInternalError(w, "failed to update role")
		return
	}

	if req.PermissionIDs != nil {
		if err := s.roles.SetPermissions(r.Context(), id, *req.PermissionIDs); err != nil {
			s.logger.Error("set role permissions failed", "error", err)
			writeInternalError(w, "failed to update role")
			return
		}
	}

	// Re-read so the response reflects the updated grant set
	role, err = s.roles.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("reload role after update failed", "error", err)
		writeInternalError(w, "failed to update role")
		return
	}

	s.logger.Info("role updated", "role_id", id, "updated_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Role updated successfully",
		"role":    role,
	})
}

// handleDeleteRole removes a role. Deletion is refused while any user still
// holds the role.
func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.roles.Delete(r.Context(), id); err != nil {
		var conflict *rbac.ReferentialConflictError
		switch {
		case errors.Is(err, rbac.ErrRoleNotFound):
			writeNotFound(w, "Role not found")
		case errors.As(err, &conflict):
			writeBadRequest(w, fmt.Sprintf("Cannot delete role. It is assigned to %d user(s)", conflict.Dependents))
		default:
			s.logger.Error("delete role failed", "error", err)
			writeInternalError(w, "failed to delete role")
		}
		return
	}

	s.logger.Info("role deleted", "role_id", id, "deleted_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Role deleted successfully"})
}

// handleAssignPermission grants a single permission to a role.
func (s *Server) handleAssignPermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req assignPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.PermissionID == "" {
		writeBadRequest(w, "permission_id is required")
		return
	}

	if _, err := s.roles.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			writeNotFound(w, "Role not found")
			return
		}
		s.logger.Error("get role for permission grant failed", "error", err)
		writeInternalError(w, "failed to assign permission")
		return
	}

	permission, err := s.permissions.GetByID(r.Context(), req.PermissionID)
	if err != nil {
		if errors.Is(err, rbac.ErrPermissionNotFound) {
			writeNotFound(w, "Permission not found")
			return
		}
		s.logger.Error("get permission for grant failed", "error", err)
		writeInternalError(w, "failed to assign permission")
		return
	}

	if err := s.roles.AddPermission(r.Context(), id, req.PermissionID); err != nil {
		if errors.Is(err, rbac.ErrAssociationExists) {
			writeBadRequest(w, "Role already has this permission")
			return
		}
		s.logger.Error("assign permission failed", "error", err)
		writeInternalError(w, "failed to assign permission")
		return
	}

	// Re-read so the response reflects the new grant
	role, err := s.roles.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("reload role after permission grant failed", "error", err)
		writeInternalError(w, "failed to assign permission")
		return
	}

	s.logger.Info("permission assigned", "role_id", id, "permission_id", permission.ID,
		"assigned_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Permission %s assigned to role %s", permission.Name, role.Name),
		"role":    role,
	})
}

// handleRemovePermission revokes a single permission from a role.
func (s *Server) handleRemovePermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	permissionID := chi.URLParam(r, "permission_id")

	if _, err := s.roles.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			writeNotFound(w, "Role not found")
			return
		}
		s.logger.Error("get role for permission removal failed", "error", err)
		writeInternalError(w, "failed to remove permission")
		return
	}

	permission, err := s.permissions.GetByID(r.Context(), permissionID)
	if err != nil {
		if errors.Is(err, rbac.ErrPermissionNotFound) {
			writeNotFound(w, "Permission not found")
			return
		}
		s.logger.Error("get permission for removal failed", "error", err)
		writeInternalError(w, "failed to remove permission")
		return
	}

	if err := s.roles.RemovePermission(r.Context(), id, permissionID); err != nil {
		if errors.Is(err, rbac.ErrAssociationNotFound) {
			writeBadRequest(w, "Role does not have this permission")
			return
		}
		s.logger.Error("remove permission failed", "error", err)
		writeInternalError(w, "failed to remove permission")
		return
	}

	// Re-read so the response reflects the revoked grant
	role, err := s.roles.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("reload role after permission removal failed", "error", err)
		writeInternalError(w, "failed to remove permission")
		return
	}

	s.logger.Info("permission removed", "role_id", id, "permission_id", permission.ID,
		"removed_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Permission %s removed from role %s", permission.Name, role.Name),
		"role":    role,
	})
}
