package rbac

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the RBAC schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "rbac-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		) STRICT;

		CREATE TABLE roles (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		) STRICT;

		CREATE TABLE permissions (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		) STRICT;

		CREATE TABLE user_roles (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role_id    TEXT NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
			created_at TEXT NOT NULL,
			PRIMARY KEY (user_id, role_id)
		) STRICT;

		CREATE INDEX idx_user_roles_role_id ON user_roles(role_id);

		CREATE TABLE role_permissions (
			role_id       TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			permission_id TEXT NOT NULL REFERENCES permissions(id) ON DELETE RESTRICT,
			created_at    TEXT NOT NULL,
			PRIMARY KEY (role_id, permission_id)
		) STRICT;

		CREATE INDEX idx_role_permissions_permission_id ON role_permissions(permission_id);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying rbac schema: %v", err)
	}

	return db
}

// seedTestUser inserts a test user with no roles and returns it.
func seedTestUser(t *testing.T, db *sql.DB, username string) *User {
	t.Helper()

	repo := NewUserRepository(db)
	user := &User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "test-hash",
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), user, nil); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// seedTestRole inserts a test role with no grants and returns it.
func seedTestRole(t *testing.T, db *sql.DB, name string) *Role {
	t.Helper()

	repo := NewRoleRepository(db)
	role := &Role{
		Name:        name,
		Description: name + " role",
	}
	if err := repo.Create(context.Background(), role, nil); err != nil {
		t.Fatalf("creating test role %s: %v", name, err)
	}
	return role
}

// seedTestPermission inserts a test permission and returns it.
func seedTestPermission(t *testing.T, db *sql.DB, name string) *Permission {
	t.Helper()

	repo := NewPermissionRepository(db)
	permission := &Permission{
		Name:        name,
		Description: name + " permission",
	}
	if err := repo.Create(context.Background(), permission); err != nil {
		t.Fatalf("creating test permission %s: %v", name, err)
	}
	return permission
}
