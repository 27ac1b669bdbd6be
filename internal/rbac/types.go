package rbac

import (
	"errors"
	"fmt"
	"time"
)

// Permission names gating the HTTP API. Seeded at first startup.
const (
	PermUserRead         = "user_read"
	PermUserWrite        = "user_write"
	PermUserDelete       = "user_delete"
	PermRoleRead         = "role_read"
	PermRoleWrite        = "role_write"
	PermRoleDelete       = "role_delete"
	PermPermissionRead   = "permission_read"
	PermPermissionWrite  = "permission_write"
	PermPermissionDelete = "permission_delete"
)

// User represents an account holding roles and, through them, permissions.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Roles lists the user's role memberships without their grants.
	Roles []RoleSummary `json:"roles"`

	// Permissions is the deduplicated union of permission names
	// granted through all of the user's roles.
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the user holds the named permission
// through any of their roles.
func (u *User) HasPermission(name string) bool {
	for _, p := range u.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// FullName returns the user's display name, falling back to the username.
func (u *User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	if u.LastName == "" {
		return u.FirstName
	}
	if u.FirstName == "" {
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// Role groups permissions for assignment to users.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`

	// Permissions lists the role's grants in full.
	Permissions []Permission `json:"permissions"`
}

// Summary returns the role without its permission grants, as embedded
// in user payloads.
func (r *Role) Summary() RoleSummary {
	return RoleSummary{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
	}
}

// RoleSummary is a role reference without its permission grants.
type RoleSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Permission is a named capability checked by the authorisation middleware.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// ReferentialConflictError reports a delete that was refused because
// other records still reference the target.
type ReferentialConflictError struct {
	// Resource is the entity that could not be deleted ("role" or "permission").
	Resource string

	// Dependents is how many records still reference it.
	Dependents int
}

func (e *ReferentialConflictError) Error() string {
	return fmt.Sprintf("%s still referenced by %d record(s)", e.Resource, e.Dependents)
}

// Sentinel errors for RBAC operations.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrRoleNotFound        = errors.New("role not found")
	ErrPermissionNotFound  = errors.New("permission not found")
	ErrUsernameExists      = errors.New("username already exists")
	ErrEmailExists         = errors.New("email already exists")
	ErrRoleExists          = errors.New("role already exists")
	ErrPermissionExists    = errors.New("permission already exists")
	ErrAssociationExists   = errors.New("association already exists")
	ErrAssociationNotFound = errors.New("association not found")
)
