package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Built-in role names seeded at first startup.
const (
	RoleAdmin    = "Admin"
	RoleHR       = "HR"
	RoleEmployee = "Employee"
)

// defaultPermissions lists the permissions gating the HTTP API.
var defaultPermissions = []Permission{
	{Name: PermUserRead, Description: "Read user information"},
	{Name: PermUserWrite, Description: "Create and update users"},
	{Name: PermUserDelete, Description: "Delete users"},
	{Name: PermRoleRead, Description: "Read role information"},
	{Name: PermRoleWrite, Description: "Create and update roles"},
	{Name: PermRoleDelete, Description: "Delete roles"},
	{Name: PermPermissionRead, Description: "Read permission information"},
	{Name: PermPermissionWrite, Description: "Create and update permissions"},
	{Name: PermPermissionDelete, Description: "Delete permissions"},
}

// defaultRoles lists the built-in roles and their permission grants.
var defaultRoles = []struct {
	name        string
	description string
	permissions []string
}{
	{RoleAdmin, "System administrator with full access", allPermissionNames()},
	{RoleHR, "Human resources manager", []string{PermUserRead, PermUserWrite, PermRoleRead}},
	{RoleEmployee, "Regular employee", []string{PermUserRead}},
}

// allPermissionNames returns every seeded permission name.
func allPermissionNames() []string {
	names := make([]string, len(defaultPermissions))
	for i, p := range defaultPermissions {
		names[i] = p.Name
	}
	return names
}

// SeedDefaults creates the default permissions and roles if absent.
//
// Permissions and roles are created individually, so a partially
// seeded database is completed rather than duplicated. The permission
// grants of the built-in roles are reasserted on every startup.
func SeedDefaults(ctx context.Context, roles RoleRepository, permissions PermissionRepository, logger *slog.Logger) error {
	permIDs := make(map[string]string, len(defaultPermissions))
	created := 0

	for _, p := range defaultPermissions {
		existing, err := permissions.GetByName(ctx, p.Name)
		switch {
		case err == nil:
			permIDs[p.Name] = existing.ID
		case errors.Is(err, ErrPermissionNotFound):
			perm := p
			if err := permissions.Create(ctx, &perm); err != nil {
				return fmt.Errorf("seeding permission %s: %w", p.Name, err)
			}
			permIDs[p.Name] = perm.ID
			created++
		default:
			return fmt.Errorf("checking permission %s: %w", p.Name, err)
		}
	}

	for _, d := range defaultRoles {
		role, err := roles.GetByName(ctx, d.name)
		if errors.Is(err, ErrRoleNotFound) {
			role = &Role{Name: d.name, Description: d.description}
			if err := roles.Create(ctx, role, nil); err != nil {
				return fmt.Errorf("seeding role %s: %w", d.name, err)
			}
		} else if err != nil {
			return fmt.Errorf("checking role %s: %w", d.name, err)
		}

		ids := make([]string, 0, len(d.permissions))
		for _, name := range d.permissions {
			if id, ok := permIDs[name]; ok {
				ids = append(ids, id)
			}
		}
		if err := roles.SetPermissions(ctx, role.ID, ids); err != nil {
			return fmt.Errorf("granting permissions to %s: %w", d.name, err)
		}
	}

	if created > 0 {
		logger.Info("seeded default permissions and roles", "permissions_created", created)
	}
	return nil
}
