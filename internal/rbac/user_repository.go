package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User, roleIDs []string) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, page, perPage int) ([]User, int, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetRoles(ctx context.Context, userID string, roleIDs []string) error
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	HasPermission(ctx context.Context, userID, permission string) (bool, error)
	PermissionsOf(ctx context.Context, userID string) ([]string, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts a new user account and grants the listed roles in one
// transaction. The ID is generated if empty. Role IDs that do not
// resolve to an existing role are skipped.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User, roleIDs []string) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	user.UpdatedAt = user.CreatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, boolToInt(user.IsActive), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return userUniqueError(err)
		}
		return fmt.Errorf("creating user: %w", err)
	}

	if err := insertUserRoles(ctx, tx, user.ID, roleIDs, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user creation: %w", err)
	}

	return r.hydrate(ctx, user)
}

// GetByID retrieves a user by their unique ID, including role
// memberships and the flattened permission union.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx,
		"SELECT id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at FROM users WHERE id = ?", id)
}

// GetByUsernameOrEmail retrieves a user matching the identifier against
// either the username or the email column. Used by login.
func (r *SQLiteUserRepository) GetByUsernameOrEmail(ctx context.Context, identifier string) (*User, error) {
	return r.getUser(ctx,
		"SELECT id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at FROM users WHERE username = ? OR email = ?",
		identifier, identifier)
}

// GetByEmail retrieves a user by their email address. Used by the
// password reset flow.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUser(ctx,
		"SELECT id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at FROM users WHERE email = ?", email)
}

// List returns a page of users ordered by creation date, and the total
// account count for pagination.
func (r *SQLiteUserRepository) List(ctx context.Context, page, perPage int) ([]User, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	offset := (page - 1) * perPage

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at FROM users ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?",
		perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating users: %w", err)
	}

	for i := range users {
		if err := r.hydrate(ctx, &users[i]); err != nil {
			return nil, 0, err
		}
	}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	if users == nil {
		users = []User{}
	}
	return users, total, nil
}

// Update modifies a user's mutable fields (username, email, first_name,
// last_name, is_active). Uniqueness of username and email is enforced
// by the database constraints.
func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	now := time.Now().UTC().Format(time.RFC3339)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		user.Username, user.Email, user.FirstName, user.LastName,
		boolToInt(user.IsActive), now, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return userUniqueError(err)
		}
		return fmt.Errorf("updating user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword changes a user's password hash.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, now, id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetRoles replaces the user's role memberships with the listed roles.
// Role IDs that do not resolve to an existing role are skipped.
func (r *SQLiteUserRepository) SetRoles(ctx context.Context, userID string, roleIDs []string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing role memberships: %w", err)
	}

	if err := insertUserRoles(ctx, tx, userID, roleIDs, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing role memberships: %w", err)
	}
	return nil
}

// AddRole grants a single role to a user. Both IDs must reference
// existing records; granting a role the user already holds returns
// ErrAssociationExists.
func (r *SQLiteUserRepository) AddRole(ctx context.Context, userID, roleID string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id, created_at) VALUES (?, ?, ?)",
		userID, roleID, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAssociationExists
		}
		return fmt.Errorf("assigning role: %w", err)
	}
	return nil
}

// RemoveRole revokes a single role from a user. Revoking a role the
// user does not hold returns ErrAssociationNotFound.
func (r *SQLiteUserRepository) RemoveRole(ctx context.Context, userID, roleID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id = ? AND role_id = ?", userID, roleID)
	if err != nil {
		return fmt.Errorf("removing role: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrAssociationNotFound
	}
	return nil
}

// Delete removes a user account. Role memberships cascade.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the total number of user accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// HasPermission reports whether any of the user's roles grants the
// named permission. The graph is consulted directly, so grants and
// revocations take effect on the next call.
func (r *SQLiteUserRepository) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = ? AND p.name = ?
		 LIMIT 1`, userID, permission,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("resolving permission: %w", err)
	}
	return true, nil
}

// PermissionsOf returns the deduplicated permission names granted to
// the user through any role, ordered by name.
func (r *SQLiteUserRepository) PermissionsOf(ctx context.Context, userID string) ([]string, error) {
	return r.loadPermissionNames(ctx, userID)
}

// getUser executes a query, scans a single user, and hydrates the
// role memberships and permission union.
func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	u, err := scanUserFrom(row)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// hydrate loads the user's role memberships and the deduplicated
// union of permission names granted through them.
func (r *SQLiteUserRepository) hydrate(ctx context.Context, user *User) error {
	roles, err := r.loadRoles(ctx, user.ID)
	if err != nil {
		return err
	}
	perms, err := r.loadPermissionNames(ctx, user.ID)
	if err != nil {
		return err
	}
	user.Roles = roles
	user.Permissions = perms
	return nil
}

// loadRoles returns the user's roles as summaries, ordered by name.
func (r *SQLiteUserRepository) loadRoles(ctx context.Context, userID string) ([]RoleSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.name, r.description
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ?
		 ORDER BY r.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user roles: %w", err)
	}
	defer rows.Close()

	roles := []RoleSummary{}
	for rows.Next() {
		var rs RoleSummary
		if err := rows.Scan(&rs.ID, &rs.Name, &rs.Description); err != nil {
			return nil, fmt.Errorf("scanning role summary: %w", err)
		}
		roles = append(roles, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user roles: %w", err)
	}
	return roles, nil
}

// loadPermissionNames returns the distinct permission names reachable
// through the user's roles, ordered by name.
func (r *SQLiteUserRepository) loadPermissionNames(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT p.name
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = ?
		 ORDER BY p.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user permissions: %w", err)
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning permission name: %w", err)
		}
		perms = append(perms, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user permissions: %w", err)
	}
	return perms, nil
}

// insertUserRoles grants the listed roles inside an open transaction.
// IDs that do not resolve to a role are skipped; duplicates in the
// list collapse into a single membership row.
func insertUserRoles(ctx context.Context, tx *sql.Tx, userID string, roleIDs []string, now string) error {
	for _, roleID := range roleIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_roles (user_id, role_id, created_at)
			 SELECT ?, id, ? FROM roles WHERE id = ?`,
			userID, now, roleID,
		)
		if err != nil {
			return fmt.Errorf("assigning role %s: %w", roleID, err)
		}
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanUserFrom scans a user from any scanner (Row or Rows).
func scanUserFrom(s scanner) (*User, error) {
	var u User
	var isActive int
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &isActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.IsActive = isActive != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &u, nil
}

// Helper functions.

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// userUniqueError picks the sentinel matching the violated users column.
func userUniqueError(err error) error {
	if strings.Contains(err.Error(), "users.email") {
		return ErrEmailExists
	}
	return ErrUsernameExists
}
