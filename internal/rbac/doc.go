// Package rbac implements the role-based access control graph for Gatehouse.
//
// Users hold roles and roles hold permissions; a user's effective
// permission set is the deduplicated union of the grants of every role
// they hold. The package provides SQLite-backed repositories for the
// three entity types, guarded many-to-many association operations
// (duplicate grants and missing grants are reported as errors, and a
// role or permission that is still referenced cannot be deleted), and
// idempotent seeding of the default permission and role graph.
//
// Uniqueness of usernames, emails, role names, and permission names is
// enforced by database constraints, so concurrent writers cannot race
// past the guard checks.
package rbac
