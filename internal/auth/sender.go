package auth

import (
	"context"
	"log/slog"
)

// ResetSender delivers a password reset token to the account holder.
// Production deployments plug in an email or SMS integration; the
// shipped implementation only logs.
type ResetSender interface {
	SendResetToken(ctx context.Context, email, token string) error
}

// LogResetSender writes reset tokens to the debug log instead of
// delivering them. Suitable for development only: anyone who can read
// the log can reset the account.
type LogResetSender struct {
	logger *slog.Logger
}

// NewLogResetSender creates a sender that logs tokens at debug level.
func NewLogResetSender(logger *slog.Logger) *LogResetSender {
	return &LogResetSender{logger: logger}
}

// SendResetToken logs the token. Never fails.
func (s *LogResetSender) SendResetToken(_ context.Context, email, token string) error {
	s.logger.Debug("password reset token issued",
		"email", email,
		"token", token,
	)
	return nil
}
