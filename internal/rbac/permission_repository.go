package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PermissionRepository defines the interface for permission persistence.
type PermissionRepository interface {
	Create(ctx context.Context, permission *Permission) error
	GetByID(ctx context.Context, id string) (*Permission, error)
	GetByName(ctx context.Context, name string) (*Permission, error)
	List(ctx context.Context) ([]Permission, error)
	Update(ctx context.Context, permission *Permission) error
	Delete(ctx context.Context, id string) error
}

// SQLitePermissionRepository implements PermissionRepository using SQLite.
type SQLitePermissionRepository struct {
	db *sql.DB
}

// NewPermissionRepository creates a new SQLite-backed permission repository.
func NewPermissionRepository(db *sql.DB) *SQLitePermissionRepository {
	return &SQLitePermissionRepository{db: db}
}

// Create inserts a new permission. The ID is generated if empty.
func (r *SQLitePermissionRepository) Create(ctx context.Context, permission *Permission) error {
	if permission.ID == "" {
		permission.ID = "prm-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	permission.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	permission.UpdatedAt = permission.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO permissions (id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		permission.ID, permission.Name, permission.Description, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPermissionExists
		}
		return fmt.Errorf("creating permission: %w", err)
	}
	return nil
}

// GetByID retrieves a permission by its unique ID.
func (r *SQLitePermissionRepository) GetByID(ctx context.Context, id string) (*Permission, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM permissions WHERE id = ?", id)
	return scanPermissionFrom(row)
}

// GetByName retrieves a permission by its unique name.
func (r *SQLitePermissionRepository) GetByName(ctx context.Context, name string) (*Permission, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM permissions WHERE name = ?", name)
	return scanPermissionFrom(row)
}

// List returns all permissions ordered by name.
func (r *SQLitePermissionRepository) List(ctx context.Context) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM permissions ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		p, err := scanPermissionFrom(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}

	if perms == nil {
		perms = []Permission{}
	}
	return perms, nil
}

// Update modifies a permission's name and description.
func (r *SQLitePermissionRepository) Update(ctx context.Context, permission *Permission) error {
	now := time.Now().UTC().Format(time.RFC3339)
	permission.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE permissions SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		permission.Name, permission.Description, now, permission.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPermissionExists
		}
		return fmt.Errorf("updating permission: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

// Delete removes a permission. Deletion is refused while any role
// still holds the permission; the returned ReferentialConflictError
// carries the role count.
func (r *SQLitePermissionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	var holders int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM role_permissions WHERE permission_id = ?", id).Scan(&holders); err != nil {
		return fmt.Errorf("counting permission holders: %w", err)
	}
	if holders > 0 {
		return &ReferentialConflictError{Resource: "permission", Dependents: holders}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM permissions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting permission: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPermissionNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing permission deletion: %w", err)
	}
	return nil
}

// scanPermissionFrom scans a permission from any scanner (Row or Rows).
func scanPermissionFrom(s scanner) (*Permission, error) {
	var p Permission
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.Name, &p.Description, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPermissionNotFound
		}
		return nil, fmt.Errorf("scanning permission: %w", err)
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &p, nil
}
