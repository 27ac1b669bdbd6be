package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/rbac"
)

// ─── Request Types ─────────────────────────────────────────────────

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleRegister creates a new account with the default role.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	required := []struct{ name, value string }{
		{"username", req.Username},
		{"email", req.Email},
		{"password", req.Password},
	}
	for _, field := range required {
		if field.value == "" {
			writeBadRequest(w, field.name+" is required")
			return
		}
	}

	user := &rbac.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsActive:  true,
	}

	if err := s.auth.Register(r.Context(), user, req.Password); err != nil {
		switch {
		case errors.Is(err, rbac.ErrUsernameExists):
			writeBadRequest(w, "Username already exists")
		case errors.Is(err, rbac.ErrEmailExists):
			writeBadRequest(w, "Email already exists")
		default:
			s.logger.Error("register failed", "error", err)
			writeInternalError(w, "failed to register user")
		}
		return
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    user,
	})
}

// handleLogin authenticates a user and issues a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.UsernameOrEmail == "" || req.Password == "" {
		writeBadRequest(w, "Username or email and password are required")
		return
	}

	user, token, err := s.auth.Login(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeUnauthorized(w, "Invalid credentials")
		case errors.Is(err, auth.ErrUserInactive):
			writeUnauthorized(w, "Account is deactivated")
		default:
			s.logger.Error("login failed", "error", err)
			writeInternalError(w, "failed to log in")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// handleLogout revokes the presented session token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		s.logger.Error("logout failed", "error", err)
		writeInternalError(w, "failed to log out")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Successfully logged out"})
}

// handleGetProfile returns the authenticated user's own account.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": userFromContext(r.Context())})
}

// handleUpdateProfile modifies the authenticated user's own name and email.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Apply patches
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		if errors.Is(err, rbac.ErrEmailExists) {
			writeBadRequest(w, "Email already exists")
			return
		}
		s.logger.Error("update profile failed", "error", err)
		writeInternalError(w, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// handleChangePassword rotates the authenticated user's password after
// verifying the current one.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeBadRequest(w, "Current password and new password are required")
		return
	}

	if err := s.auth.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeBadRequest(w, "Current password is incorrect")
			return
		}
		s.logger.Error("change password failed", "error", err)
		writeInternalError(w, "failed to change password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}

// handleForgotPassword mints a reset token for the account behind the email.
// The response is identical whether or not the account exists, so the
// endpoint cannot be used to enumerate registered addresses.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Email == "" {
		writeBadRequest(w, "Email is required")
		return
	}

	if err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.logger.Error("password reset request failed", "error", err)
		writeInternalError(w, "failed to process reset request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "If the email exists, a reset token has been generated",
	})
}

// handleResetPassword consumes a reset token and sets a new password.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Token == "" || req.NewPassword == "" {
		writeBadRequest(w, "Token and new password are required")
		return
	}

	if err := s.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrResetTokenInvalid):
			writeBadRequest(w, "Invalid or expired token")
		case errors.Is(err, rbac.ErrUserNotFound):
			// Token was valid but the account has since been removed
			writeNotFound(w, "User not found")
		default:
			s.logger.Error("password reset failed", "error", err)
			writeInternalError(w, "failed to reset password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Password reset successfully"})
}
