package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nerrad567/gatehouse/internal/rbac"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin creates the initial admin account on first boot if no users
// exist. The password comes from configuration when pinned there, or is
// generated and logged once — it must be changed immediately. Returns
// the password in use (empty string if seeding was skipped).
func SeedAdmin(ctx context.Context, users rbac.UserRepository, roles rbac.RoleRepository, pinnedPassword string, logger *slog.Logger) (string, error) {
	count, err := users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	password := pinnedPassword
	generated := false
	if password == "" {
		passwordBytes := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(passwordBytes)
		generated = true
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	var roleIDs []string
	adminRole, err := roles.GetByName(ctx, rbac.RoleAdmin)
	switch {
	case err == nil:
		roleIDs = []string{adminRole.ID}
	case errors.Is(err, rbac.ErrRoleNotFound):
		// Role seeding runs first in normal startup; tolerate its absence.
	default:
		return "", fmt.Errorf("looking up admin role: %w", err)
	}

	admin := &rbac.User{
		Username:     "admin",
		Email:        "admin@gatehouse.local",
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Administrator",
		IsActive:     true,
	}

	if err := users.Create(ctx, admin, roleIDs); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated {
		logger.Warn("seed admin account created",
			"username", "admin",
			"password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed admin account created", "username", "admin")
	}

	return password, nil
}
