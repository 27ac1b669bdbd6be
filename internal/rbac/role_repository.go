package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RoleRepository defines the interface for role persistence.
type RoleRepository interface {
	Create(ctx context.Context, role *Role, permissionIDs []string) error
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	Update(ctx context.Context, role *Role) error
	SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error
	AddPermission(ctx context.Context, roleID, permissionID string) error
	RemovePermission(ctx context.Context, roleID, permissionID string) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRoleRepository implements RoleRepository using SQLite.
type SQLiteRoleRepository struct {
	db *sql.DB
}

// NewRoleRepository creates a new SQLite-backed role repository.
func NewRoleRepository(db *sql.DB) *SQLiteRoleRepository {
	return &SQLiteRoleRepository{db: db}
}

// Create inserts a new role and grants the listed permissions in one
// transaction. The ID is generated if empty. Permission IDs that do
// not resolve to an existing permission are skipped.
func (r *SQLiteRoleRepository) Create(ctx context.Context, role *Role, permissionIDs []string) error {
	if role.ID == "" {
		role.ID = "rol-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	role.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	role.UpdatedAt = role.CreatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO roles (id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		role.ID, role.Name, role.Description, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRoleExists
		}
		return fmt.Errorf("creating role: %w", err)
	}

	if err := insertRolePermissions(ctx, tx, role.ID, permissionIDs, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing role creation: %w", err)
	}

	return r.hydrate(ctx, role)
}

// GetByID retrieves a role by its unique ID, including its permission grants.
func (r *SQLiteRoleRepository) GetByID(ctx context.Context, id string) (*Role, error) {
	return r.getRole(ctx,
		"SELECT id, name, description, created_at, updated_at FROM roles WHERE id = ?", id)
}

// GetByName retrieves a role by its unique name.
func (r *SQLiteRoleRepository) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.getRole(ctx,
		"SELECT id, name, description, created_at, updated_at FROM roles WHERE name = ?", name)
}

// List returns all roles with their permission grants, ordered by name.
func (r *SQLiteRoleRepository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRoleFrom(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}

	for i := range roles {
		if err := r.hydrate(ctx, &roles[i]); err != nil {
			return nil, err
		}
	}

	if roles == nil {
		roles = []Role{}
	}
	return roles, nil
}

// Update modifies a role's name and description.
func (r *SQLiteRoleRepository) Update(ctx context.Context, role *Role) error {
	now := time.Now().UTC().Format(time.RFC3339)
	role.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE roles SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		role.Name, role.Description, now, role.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRoleExists
		}
		return fmt.Errorf("updating role: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// SetPermissions replaces the role's permission grants with the listed
// permissions. Permission IDs that do not resolve are skipped.
func (r *SQLiteRoleRepository) SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE role_id = ?", roleID); err != nil {
		return fmt.Errorf("clearing permission grants: %w", err)
	}

	if err := insertRolePermissions(ctx, tx, roleID, permissionIDs, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing permission grants: %w", err)
	}
	return nil
}

// AddPermission grants a single permission to a role. Granting a
// permission the role already holds returns ErrAssociationExists.
func (r *SQLiteRoleRepository) AddPermission(ctx context.Context, roleID, permissionID string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO role_permissions (role_id, permission_id, created_at) VALUES (?, ?, ?)",
		roleID, permissionID, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAssociationExists
		}
		return fmt.Errorf("granting permission: %w", err)
	}
	return nil
}

// RemovePermission revokes a single permission from a role. Revoking a
// permission the role does not hold returns ErrAssociationNotFound.
func (r *SQLiteRoleRepository) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM role_permissions WHERE role_id = ? AND permission_id = ?", roleID, permissionID)
	if err != nil {
		return fmt.Errorf("revoking permission: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrAssociationNotFound
	}
	return nil
}

// Delete removes a role. Deletion is refused while any user still
// holds the role; the returned ReferentialConflictError carries the
// member count. Permission grants cascade.
func (r *SQLiteRoleRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	var members int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_roles WHERE role_id = ?", id).Scan(&members); err != nil {
		return fmt.Errorf("counting role members: %w", err)
	}
	if members > 0 {
		return &ReferentialConflictError{Resource: "role", Dependents: members}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM roles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting role: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrRoleNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing role deletion: %w", err)
	}
	return nil
}

// getRole executes a query, scans a single role, and hydrates its
// permission grants.
func (r *SQLiteRoleRepository) getRole(ctx context.Context, query string, args ...any) (*Role, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	role, err := scanRoleFrom(row)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// hydrate loads the role's permission grants, ordered by name.
func (r *SQLiteRoleRepository) hydrate(ctx context.Context, role *Role) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.description, p.created_at, p.updated_at
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = ?
		 ORDER BY p.name ASC`, role.ID)
	if err != nil {
		return fmt.Errorf("loading role permissions: %w", err)
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		p, err := scanPermissionFrom(rows)
		if err != nil {
			return err
		}
		perms = append(perms, *p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating role permissions: %w", err)
	}

	role.Permissions = perms
	return nil
}

// insertRolePermissions grants the listed permissions inside an open
// transaction. IDs that do not resolve to a permission are skipped;
// duplicates in the list collapse into a single grant row.
func insertRolePermissions(ctx context.Context, tx *sql.Tx, roleID string, permissionIDs []string, now string) error {
	for _, permissionID := range permissionIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO role_permissions (role_id, permission_id, created_at)
			 SELECT ?, id, ? FROM permissions WHERE id = ?`,
			roleID, now, permissionID,
		)
		if err != nil {
			return fmt.Errorf("granting permission %s: %w", permissionID, err)
		}
	}
	return nil
}

// scanRoleFrom scans a role from any scanner (Row or Rows).
func scanRoleFrom(s scanner) (*Role, error) {
	var role Role
	var createdAt, updatedAt string

	err := s.Scan(&role.ID, &role.Name, &role.Description, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("scanning role: %w", err)
	}

	role.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	role.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &role, nil
}
