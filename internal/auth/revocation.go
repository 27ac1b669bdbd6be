package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RevocationStore records session IDs (jti) invalidated before their
// natural expiry. Logout writes here; every authenticated request
// checks here.
type RevocationStore interface {
	// Revoke marks a session ID as invalid until expiresAt. Revoking
	// an already-revoked ID is a no-op.
	Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error

	// IsRevoked reports whether a session ID has been revoked.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired removes revocation records whose sessions have
	// expired anyway. Returns the number of deleted rows.
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteRevocationStore implements RevocationStore using SQLite.
type SQLiteRevocationStore struct {
	db *sql.DB
}

// NewRevocationStore creates a new SQLite-backed revocation store.
func NewRevocationStore(db *sql.DB) *SQLiteRevocationStore {
	return &SQLiteRevocationStore{db: db}
}

// Revoke records the session ID. INSERT OR IGNORE makes repeated
// logout calls with the same token idempotent.
func (s *SQLiteRevocationStore) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, user_id, expires_at, revoked_at)
		 VALUES (?, ?, ?, ?)`,
		jti, userID, expiresAt.UTC().Format(time.RFC3339), now,
	)
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// IsRevoked reports whether the session ID appears in the store.
// Expiry is not checked here: an expired token already fails parsing.
func (s *SQLiteRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM revoked_tokens WHERE jti = ?", jti,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return true, nil
}

// DeleteExpired removes records for sessions past their expiry,
// freeing storage. Returns the number of deleted rows.
func (s *SQLiteRevocationStore) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired revocations: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}
