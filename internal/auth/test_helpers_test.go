package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gatehouse/internal/rbac"
)

// testDB creates a temporary SQLite database with the account and token
// schema applied. The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
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

		CREATE TABLE role_permissions (
			role_id       TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			permission_id TEXT NOT NULL REFERENCES permissions(id) ON DELETE RESTRICT,
			created_at    TEXT NOT NULL,
			PRIMARY KEY (role_id, permission_id)
		) STRICT;

		CREATE TABLE revoked_tokens (
			jti        TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			revoked_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE reset_tokens (
			token_hash TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying test schema: %v", err)
	}

	return db
}

// newTestRedis starts a miniredis instance and connects a client to it.
func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close() //nolint:errcheck // Test cleanup
	})

	return client, mr
}

// seedTestUser inserts a user with the given password and no roles.
func seedTestUser(t *testing.T, db *sql.DB, username, password string) *rbac.User {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := rbac.NewUserRepository(db)
	user := &rbac.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), user, nil); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// newTestService wires a Service against SQLite-backed stores.
func newTestService(t *testing.T, db *sql.DB) *Service {
	t.Helper()

	return NewService(ServiceConfig{
		Users:       rbac.NewUserRepository(db),
		Roles:       rbac.NewRoleRepository(db),
		Revocations: NewRevocationStore(db),
		Resets:      NewResetTokenStore(db),
		JWTSecret:   "test-secret-key-for-jwt-signing-32b",
	})
}
