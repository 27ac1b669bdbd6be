package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ResetTokenStore persists password reset tokens. Tokens are single
// use: Consume removes the token in the same operation that resolves
// it, so a second attempt with the same token always fails.
type ResetTokenStore interface {
	// Create stores a reset token for a user. Only the token's hash
	// is persisted.
	Create(ctx context.Context, token, userID string, expiresAt time.Time) error

	// Consume resolves a raw token to its user ID and deletes it
	// atomically. Absent or expired tokens fail ErrResetTokenInvalid.
	Consume(ctx context.Context, token string) (string, error)

	// DeleteExpired removes tokens past their expiry that were never
	// consumed. Returns the number of deleted rows.
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteResetTokenStore implements ResetTokenStore using SQLite.
type SQLiteResetTokenStore struct {
	db *sql.DB
}

// NewResetTokenStore creates a new SQLite-backed reset token store.
func NewResetTokenStore(db *sql.DB) *SQLiteResetTokenStore {
	return &SQLiteResetTokenStore{db: db}
}

// Create stores the SHA-256 hash of the token with its expiry.
func (s *SQLiteResetTokenStore) Create(ctx context.Context, token, userID string, expiresAt time.Time) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reset_tokens (token_hash, user_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?)`,
		HashToken(token), userID, expiresAt.UTC().Format(time.RFC3339), now,
	)
	if err != nil {
		return fmt.Errorf("creating reset token: %w", err)
	}
	return nil
}

// Consume looks up and deletes the token in one transaction. The row
// is removed even when the token turns out to be expired, so a stale
// token cannot be retried either.
func (s *SQLiteResetTokenStore) Consume(ctx context.Context, token string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting consume transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	hash := HashToken(token)

	var userID, expiresAt string
	err = tx.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM reset_tokens WHERE token_hash = ?", hash,
	).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrResetTokenInvalid
		}
		return "", fmt.Errorf("looking up reset token: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM reset_tokens WHERE token_hash = ?", hash); err != nil {
		return "", fmt.Errorf("consuming reset token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing consume: %w", err)
	}

	expiry, _ := time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	if time.Now().After(expiry) {
		return "", ErrResetTokenInvalid
	}

	return userID, nil
}

// DeleteExpired removes unconsumed tokens past their expiry. Returns
// the number of deleted rows.
func (s *SQLiteResetTokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM reset_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired reset tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}
