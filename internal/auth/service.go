package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nerrad567/gatehouse/internal/rbac"
)

// defaultResetTTL applies when no reset token TTL is configured.
const defaultResetTTL = time.Hour

// ServiceConfig carries the dependencies for an auth Service.
type ServiceConfig struct {
	Users       rbac.UserRepository
	Roles       rbac.RoleRepository
	Revocations RevocationStore
	Resets      ResetTokenStore
	Sender      ResetSender
	Logger      *slog.Logger
	JWTSecret   string
	SessionTTL  time.Duration
	ResetTTL    time.Duration
}

// Service implements the authentication flows: login, logout, session
// verification, registration and password lifecycle. Authorization is
// not handled here; the permission graph lives in the rbac package.
type Service struct {
	users       rbac.UserRepository
	roles       rbac.RoleRepository
	revocations RevocationStore
	resets      ResetTokenStore
	sender      ResetSender
	logger      *slog.Logger
	jwtSecret   string
	sessionTTL  time.Duration
	resetTTL    time.Duration
}

// NewService creates an auth service. Logger and Sender fall back to
// sane defaults; TTLs fall back to 24h sessions and 1h reset tokens.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sender := cfg.Sender
	if sender == nil {
		sender = NewLogResetSender(logger)
	}

	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}

	resetTTL := cfg.ResetTTL
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}

	return &Service{
		users:       cfg.Users,
		roles:       cfg.Roles,
		revocations: cfg.Revocations,
		resets:      cfg.Resets,
		sender:      sender,
		logger:      logger,
		jwtSecret:   cfg.JWTSecret,
		sessionTTL:  sessionTTL,
		resetTTL:    resetTTL,
	}
}

// Login authenticates a user by username or email and returns the user
// with a fresh session token. An unknown identifier and a wrong
// password both fail ErrInvalidCredentials; a deactivated account is
// only reported after the credentials checked out.
func (s *Service) Login(ctx context.Context, identifier, password string) (*rbac.User, string, error) {
	user, err := s.users.GetByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, "", ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, "", ErrUserInactive
	}

	token, err := IssueSessionToken(user, s.jwtSecret, s.sessionTTL)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Authenticate resolves a raw session token to its user. It verifies
// the signature and expiry, consults the revocation store, and loads
// the user with the current role and permission graph.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*rbac.User, error) {
	claims, err := ParseSessionToken(rawToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrTokenInvalid)
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	return user, nil
}

// Logout revokes the session carried by the raw token. Revoking the
// same session twice is harmless.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	claims, err := ParseSessionToken(rawToken, s.jwtSecret)
	if err != nil {
		return err
	}

	if err := s.revocations.Revoke(ctx, claims.ID, claims.Subject, claims.ExpiresAt.Time); err != nil {
		return err
	}

	return nil
}

// Register creates a new account with the given plaintext password and
// grants the default Employee role when it exists. The user is updated
// in place with its generated ID and resolved role graph.
func (s *Service) Register(ctx context.Context, user *rbac.User, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = hash

	var roleIDs []string
	defaultRole, err := s.roles.GetByName(ctx, rbac.RoleEmployee)
	switch {
	case err == nil:
		roleIDs = []string{defaultRole.ID}
	case errors.Is(err, rbac.ErrRoleNotFound):
		// No default role configured; register without one.
	default:
		return fmt.Errorf("looking up default role: %w", err)
	}

	return s.users.Create(ctx, user, roleIDs)
}

// ChangePassword replaces the user's password after verifying the
// current one. A wrong current password fails ErrInvalidCredentials.
func (s *Service) ChangePassword(ctx context.Context, user *rbac.User, currentPassword, newPassword string) error {
	ok, err := VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verifying current password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	return s.users.UpdatePassword(ctx, user.ID, hash)
}

// RequestPasswordReset mints a reset token for the account behind the
// email and hands it to the configured sender. An unknown email is not
// an error: the caller sees the same outcome either way, so account
// existence is never revealed.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, rbac.ErrUserNotFound) {
			s.logger.Debug("password reset requested for unknown email", "email", email)
			return nil
		}
		return fmt.Errorf("looking up email: %w", err)
	}

	token, err := GenerateResetToken()
	if err != nil {
		return err
	}

	if err := s.resets.Create(ctx, token, user.ID, time.Now().Add(s.resetTTL)); err != nil {
		return err
	}

	if err := s.sender.SendResetToken(ctx, email, token); err != nil {
		return fmt.Errorf("sending reset token: %w", err)
	}

	return nil
}

// ResetPassword consumes a reset token and sets the new password.
// The token is spent even when the account no longer exists.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.resets.Consume(ctx, token)
	if err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	return s.users.UpdatePassword(ctx, userID, hash)
}

// PruneExpired removes expired revocation and reset token records.
// Intended to run on a background interval; Redis-backed stores
// self-evict and report zero.
func (s *Service) PruneExpired(ctx context.Context) (int64, error) {
	revoked, err := s.revocations.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}

	resets, err := s.resets.DeleteExpired(ctx)
	if err != nil {
		return revoked, err
	}

	return revoked + resets, nil
}
