package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gatehouse/internal/rbac"
)

// defaultSessionTTL applies when no TTL is configured.
const defaultSessionTTL = 24 * time.Hour

// SessionClaims are the JWT claims carried by a session token. Only
// registered claims are used: the subject is the user ID and the jti
// identifies the session for revocation. Roles and permissions are
// resolved from the database per request, never baked into the token.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// IssueSessionToken creates a signed HS256 session token for a user.
func IssueSessionToken(user *rbac.User, secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken validates and parses a session token. Verification
// failures surface as sentinel errors so callers can distinguish an
// expired session from a forged or garbled one.
func ParseSessionToken(tokenString, secret string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %w", ErrTokenSignature, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
		}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrTokenInvalid)
	}

	return claims, nil
}

// Reset token alphabet and length. Alphanumeric only so tokens survive
// copy-paste and URL embedding without escaping.
const (
	resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	resetTokenLength   = 32
)

// GenerateResetToken creates a cryptographically random password reset
// token: 32 characters drawn uniformly from [A-Za-z0-9].
func GenerateResetToken() (string, error) {
	// 248 is the largest multiple of 62 below 256; bytes at or above it
	// are rejected to keep the draw uniform.
	const rejectAbove = 248

	out := make([]byte, 0, resetTokenLength)
	buf := make([]byte, resetTokenLength)
	for len(out) < resetTokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating reset token: %w", err)
		}
		for _, b := range buf {
			if b >= rejectAbove {
				continue
			}
			out = append(out, resetTokenAlphabet[int(b)%len(resetTokenAlphabet)])
			if len(out) == resetTokenLength {
				break
			}
		}
	}
	return string(out), nil
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
// Raw tokens are never stored — only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
