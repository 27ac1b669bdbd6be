package rbac

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestPermissionRepository_CreateAndGetByID(t *testing.T) {
	db := testDB(t)
	repo := NewPermissionRepository(db)
	ctx := context.Background()

	permission := &Permission{
		Name:        "user_read",
		Description: "Read user information",
	}

	if err := repo.Create(ctx, permission); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if permission.ID == "" {
		t.Fatal("Create() should generate an ID")
	}
	if !strings.HasPrefix(permission.ID, "prm-") {
		t.Errorf("ID = %q, want prm- prefix", permission.ID)
	}

	got, err := repo.GetByID(ctx, permission.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "user_read" {
		t.Errorf("Name = %q, want %q", got.Name, "user_read")
	}
	if got.Description != "Read user information" {
		t.Errorf("Description = %q", got.Description)
	}
}

func TestPermissionRepository_DuplicateName(t *testing.T) {
	db := testDB(t)
	repo := NewPermissionRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &Permission{Name: "user_read"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, &Permission{Name: "user_read"})
	if !errors.Is(err, ErrPermissionExists) {
		t.Errorf("error = %v, want ErrPermissionExists", err)
	}
}

func TestPermissionRepository_GetByName(t *testing.T) {
	db := testDB(t)
	repo := NewPermissionRepository(db)
	ctx := context.Background()

	permission := seedTestPermission(t, db, "role_write")

	got, err := repo.GetByName(ctx, "role_write")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if got.ID != permission.ID {
		t.Errorf("ID = %q, want %q", got.ID, permission.ID)
	}

	_, err = repo.GetByName(ctx, "nonexistent")
	if !errors.Is(err, ErrPermissionNotFound) {
		t.Errorf("error = %v, want ErrPermissionNotFound", err)
	}
}

func TestPermissionRepository_List(t *testing.T) {
	db := testDB(t)
	repo := NewPermissionRepository(db)
	ctx := context.Background()

	perms, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if perms == nil || len(perms) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", perms)
	}

	seedTestPermission(t, db, "user_write")
	seedTestPermission(t, db, "role_read")

	perms, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("List() length = %d, want 2", len(perms))
	}
	if perms[0].Name != "role_read" || perms[1].Name != "user_write" {
		t.Errorf("List() order = [%s, %s], want [role_read, user_write]", perms[0].Name, perms[1].Name)
	}
}

func TestPermissionRepository_Update(t *testing.T) {
	db := testDB(t)
	repo := NewPermissionRepository(db)
	ctx := context.Background()

	permission := seedTestPermission(t, db, "old_name")

	permission.Name = "new_name"
	permission.Description = "renamed"
	if err := repo.Update(ctx, permission); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, permission.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "new_name" {
		t.Errorf("Name = %q, want %q", got.Name, "new_name")
	}
}

func TestPermissionRepository_UpdateDuplicateName(t *testing.T) {
	db := testDB(t)
	repo := NewPermissionRepository(db)
	ctx := context.Background()

	seedTestPermission(t, db, "taken")
	permission := seedTestPermission(t, db, "mine")

	permission.Name = "taken"
	err := repo.Update(ctx, permission)
	if !errors.Is(err, ErrPermissionExists) {
		t.Errorf("error = %v, want ErrPermissionExists", err)
	}
}

func TestPermissionRepository_UpdateNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewPermissionRepository(db)

	err := repo.Update(context.Background(), &Permission{ID: "prm-missing", Name: "ghost"})
	if !errors.Is(err, ErrPermissionNotFound) {
		t.Errorf("error = %v, want ErrPermissionNotFound", err)
	}
}

func TestPermissionRepository_DeleteRefusedWhileGranted(t *testing.T) {
	db := testDB(t)
	repo := NewPermissionRepository(db)
	roleRepo := NewRoleRepository(db)
	ctx := context.Background()

	permission := seedTestPermission(t, db, "user_read")
	hr := seedTestRole(t, db, "HR")
	employee := seedTestRole(t, db, "Employee")
	if err := roleRepo.AddPermission(ctx, hr.ID, permission.ID); err != nil {
		t.Fatalf("AddPermission() error = %v", err)
	}
	if err := roleRepo.AddPermission(ctx, employee.ID, permission.ID); err != nil {
		t.Fatalf("AddPermission() error = %v", err)
	}

	err := repo.Delete(ctx, permission.ID)
	var conflict *ReferentialConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want ReferentialConflictError", err)
	}
	if conflict.Resource != "permission" {
		t.Errorf("Resource = %q, want %q", conflict.Resource, "permission")
	}
	if conflict.Dependents != 2 {
		t.Errorf("Dependents = %d, want 2", conflict.Dependents)
	}

	// After revoking the grants the permission can be deleted
	if err := roleRepo.RemovePermission(ctx, hr.ID, permission.ID); err != nil {
		t.Fatalf("RemovePermission() error = %v", err)
	}
	if err := roleRepo.RemovePermission(ctx, employee.ID, permission.ID); err != nil {
		t.Fatalf("RemovePermission() error = %v", err)
	}
	if err := repo.Delete(ctx, permission.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestPermissionRepository_DeleteNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewPermissionRepository(db)

	err := repo.Delete(context.Background(), "prm-missing")
	if !errors.Is(err, ErrPermissionNotFound) {
		t.Errorf("error = %v, want ErrPermissionNotFound", err)
	}
}
