package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gatehouse/internal/rbac"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Operational endpoints (no auth required)
	r.Get("/health", s.handleHealth)
	r.Get("/system", s.handleSystem)

	// Auth endpoints
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)

		// Self-service endpoints require a valid session but no permission
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/logout", s.handleLogout)
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handleUpdateProfile)
			r.Post("/change-password", s.handleChangePassword)
		})
	})

	// Administrative endpoints. Every route passes through requireAuth and
	// then the permission gate declared for its method.
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		// User management
		r.Route("/users", func(r chi.Router) {
			r.With(s.requirePermission(rbac.PermUserRead)).Get("/", s.handleListUsers)
			r.With(s.requirePermission(rbac.PermUserWrite)).Post("/", s.handleCreateUser)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.requirePermission(rbac.PermUserRead)).Get("/", s.handleGetUser)
				r.With(s.requirePermission(rbac.PermUserWrite)).Put("/", s.handleUpdateUser)
				r.With(s.requirePermission(rbac.PermUserDelete)).Delete("/", s.handleDeleteUser)
				r.With(s.requirePermission(rbac.PermUserWrite)).Post("/roles", s.handleAssignRole)
				r.With(s.requirePermission(rbac.PermUserWrite)).Delete("/roles/{role_id}", s.handleRemoveRole)
			})
		})

		// Role management
		r.Route("/roles", func(r chi.Router) {
			r.With(s.requirePermission(rbac.PermRoleRead)).Get("/", s.handleListRoles)
			r.With(s.requirePermission(rbac.PermRoleWrite)).Post("/", s.handleCreateRole)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.requirePermission(rbac.PermRoleRead)).Get("/", s.handleGetRole)
				r.With(s.requirePermission(rbac.PermRoleWrite)).Put("/", s.handleUpdateRole)
				r.With(s.requirePermission(rbac.PermRoleDelete)).Delete("/", s.handleDeleteRole)
				r.With(s.requirePermission(rbac.PermRoleWrite)).Post("/permissions", s.handleAssignPermission)
				r.With(s.requirePermission(rbac.PermRoleWrite)).Delete("/permissions/{permission_id}", s.handleRemovePermission)
			})
		})

		// Permission management
		r.Route("/permissions", func(r chi.Router) {
			r.With(s.requirePermission(rbac.PermPermissionRead)).Get("/", s.handleListPermissions)
			r.With(s.requirePermission(rbac.PermPermissionWrite)).Post("/", s.handleCreatePermission)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.requirePermission(rbac.PermPermissionRead)).Get("/", s.handleGetPermission)
				r.With(s.requirePermission(rbac.PermPermissionWrite)).Put("/", s.handleUpdatePermission)
				r.With(s.requirePermission(rbac.PermPermissionDelete)).Delete("/", s.handleDeletePermission)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
