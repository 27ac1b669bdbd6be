package auth

import (
	"context"
	"log/slog"
	"testing"

	"github.com/nerrad567/gatehouse/internal/rbac"
)

func TestSeedAdmin_CreatesAccount(t *testing.T) {
	db := testDB(t)
	users := rbac.NewUserRepository(db)
	roles := rbac.NewRoleRepository(db)
	ctx := context.Background()

	if err := rbac.SeedDefaults(ctx, roles, rbac.NewPermissionRepository(db), slog.Default()); err != nil {
		t.Fatalf("SeedDefaults() error = %v", err)
	}

	password, err := SeedAdmin(ctx, users, roles, "", slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password == "" {
		t.Fatal("SeedAdmin() should return the generated password")
	}
	if len(password) != 32 { //nolint:mnd // 16 random bytes hex-encoded
		t.Errorf("generated password length = %d, want 32", len(password))
	}

	admin, err := users.GetByUsernameOrEmail(ctx, "admin")
	if err != nil {
		t.Fatalf("GetByUsernameOrEmail() error = %v", err)
	}
	if len(admin.Roles) != 1 || admin.Roles[0].Name != rbac.RoleAdmin {
		t.Errorf("admin roles = %v, want [%s]", admin.Roles, rbac.RoleAdmin)
	}
	if !admin.IsActive {
		t.Error("seeded admin should be active")
	}

	// The logged password actually works
	ok, err := VerifyPassword(password, admin.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if !ok {
		t.Error("generated password should verify against the stored hash")
	}
}

func TestSeedAdmin_SkipsWhenUsersExist(t *testing.T) {
	db := testDB(t)
	seedTestUser(t, db, "existing", "password")
	users := rbac.NewUserRepository(db)
	roles := rbac.NewRoleRepository(db)
	ctx := context.Background()

	password, err := SeedAdmin(ctx, users, roles, "", slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password != "" {
		t.Error("SeedAdmin() should return empty password when skipped")
	}

	count, _ := users.Count(ctx)
	if count != 1 {
		t.Errorf("user count = %d, want 1 (no admin added)", count)
	}
}

func TestSeedAdmin_PinnedPassword(t *testing.T) {
	db := testDB(t)
	users := rbac.NewUserRepository(db)
	roles := rbac.NewRoleRepository(db)
	ctx := context.Background()

	password, err := SeedAdmin(ctx, users, roles, "pinned-dev-password", slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password != "pinned-dev-password" {
		t.Errorf("password = %q, want the pinned one", password)
	}

	admin, err := users.GetByUsernameOrEmail(ctx, "admin")
	if err != nil {
		t.Fatalf("GetByUsernameOrEmail() error = %v", err)
	}
	ok, _ := VerifyPassword("pinned-dev-password", admin.PasswordHash)
	if !ok {
		t.Error("pinned password should verify against the stored hash")
	}
}

func TestSeedAdmin_WithoutAdminRole(t *testing.T) {
	db := testDB(t)
	users := rbac.NewUserRepository(db)
	roles := rbac.NewRoleRepository(db)
	ctx := context.Background()

	// No roles seeded at all: the account is still created
	if _, err := SeedAdmin(ctx, users, roles, "", slog.Default()); err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}

	admin, err := users.GetByUsernameOrEmail(ctx, "admin")
	if err != nil {
		t.Fatalf("GetByUsernameOrEmail() error = %v", err)
	}
	if len(admin.Roles) != 0 {
		t.Errorf("admin roles = %v, want none", admin.Roles)
	}
}
