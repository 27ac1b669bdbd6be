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

type createPermissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updatePermissionRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListPermissions returns all permissions.
func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := s.permissions.List(r.Context())
	if err != nil {
		s.logger.Error("list permissions failed", "error", err)
		writeInternalError(w, "failed to list permissions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"permissions": permissions,
		"count":       len(permissions),
	})
}

// handleCreatePermission creates a new permission.
func (s *Server) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Name == "" {
		writeBadRequest(w, "Permission name is required")
		return
	}

	permission := &rbac.Permission{
		Name:        req.Name,
		Description: req.Description,
	}

	if err := s.permissions.Create(r.Context(), permission); err != nil {
		if errors.Is(err, rbac.ErrPermissionExists) {
			writeBadRequest(w, "Permission already exists")
			return
		}
		s.logger.Error("create permission failed", "error", err)
		writeInternalError(w, "failed to create permission")
		return
	}

	s.logger.Info("permission created", "permission_id", permission.ID, "name", permission.Name,
		"created_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Permission created successfully",
		"permission": permission,
	})
}

// handleGetPermission returns a single permission by ID.
func (s *Server) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	permission, err := s.permissions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrPermissionNotFound) {
			writeNotFound(w, "Permission not found")
			return
		}
		s.logger.Error("get permission failed", "error", err)
		writeInternalError(w, "failed to get permission")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"permission": permission})
}

// handleUpdatePermission modifies a permission's name and description.
func (s *Server) handleUpdatePermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updatePermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	permission, err := s.permissions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrPermissionNotFound) {
			writeNotFound(w, "Permission not found")
			return
		}
		s.logger.Error("get permission for update failed", "error", err)
		writeInternalError(w, "failed to update permission")
		return
	}

	// Apply patches
	if req.Name != nil {
		permission.Name = *req.Name
	}
	if req.Description != nil {
		permission.Description = *req.Description
	}

	if err := s.permissions.Update(r.Context(), permission); err != nil {
		if errors.Is(err, rbac.ErrPermissionExists) {
			writeBadRequest(w, "Permission name already exists")
			return
		}
		s.logger.Error("update permission failed", "error", err)
		writeInternalError(w, "failed to update permission")
		return
	}

	s.logger.Info("permission updated", "permission_id", id, "updated_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Permission updated successfully",
		"permission": permission,
	})
}

// handleDeletePermission removes a permission. Deletion is refused while any
// role still references it.
func (s *Server) handleDeletePermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.permissions.Delete(r.Context(), id); err != nil {
		var conflict *rbac.ReferentialConflictError
		switch {
		case errors.Is(err, rbac.ErrPermissionNotFound):
			writeNotFound(w, "Permission not found")
		case errors.As(err, &conflict):
			writeBadRequest(w, fmt.Sprintf("Cannot delete permission. It is assigned to %d role(s)", conflict.Dependents))
		default:
			s.logger.Error("delete permission failed", "error", err)
			writeInternalError(w, "failed to delete permission")
		}
		return
	}

	s.logger.Info("permission deleted", "permission_id", id, "deleted_by", userFromContext(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Permission deleted successfully"})
}
