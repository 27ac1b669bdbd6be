// Package auth provides authentication for Gatehouse.
//
// It implements:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - HS256 session tokens carrying only registered claims (sub + jti)
//   - Session revocation by jti, backed by SQLite or Redis
//   - Single-use password reset tokens, stored hashed
//   - First-boot admin account seeding
//
// Authorization lives in the rbac package: tokens never carry roles or
// permissions, so a grant or revocation is effective on the very next
// request. The Service type ties the pieces into the login, logout,
// registration and password reset flows used by the HTTP layer.
package auth
