// Package api implements the HTTP REST API server for Gatehouse.
//
// This package provides:
//   - Auth endpoints for registration, login, logout, profile management,
//     and the password reset flow
//   - Administrative CRUD endpoints for users, roles, and permissions
//   - Per-route permission gating backed by the RBAC graph
//   - Middleware stack (request ID, logging, recovery, CORS, body size limit)
//   - Operational endpoints for health checks and runtime metrics
//
// # Architecture
//
// The server sits between HTTP clients and the RBAC repositories. Handlers
// decode and validate requests, delegate to the auth service or a repository,
// and translate domain errors into the uniform {"error": message} envelope.
// No business rules live in this package.
//
// # Security
//
// Session tokens are bearer JWTs validated by the auth service on every
// protected request. Authorisation is enforced per route: each administrative
// endpoint declares the permission it requires, and the user's effective
// permission set is resolved from the database at request time, so role and
// grant changes take effect without re-login.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
