// Package access implements the identity, access-control and invitation
// core for multi-tenant accounts: it issues and validates bearer tokens,
// resolves a principal's effective role and permissions within an account,
// enforces role/permission/ownership invariants, and manages the lifecycle
// of pending membership invitations.
//
// Access control chain:
//   - TokenService signs and verifies access/refresh token pairs. A token's
//     embedded role is treated as a proof of identity only; the effective
//     role for an account is always re-derived from the membership store at
//     enforcement time.
//   - RevocationRegistry is consulted before any signature is trusted, so a
//     revoked but still cryptographically valid token never authenticates.
//   - The middleware/guard package exposes each stage (authenticate, resolve
//     membership, enforce role/permission/ownership) as composable router
//     middleware.
//
// Invitations:
//   - InvitationManager governs the pending → accepted/cancelled/expired
//     state machine. Invitation tokens are random capabilities; resending an
//     invitation mints a fresh token and implicitly invalidates the old one.
//
// Audit sinks:
//   - AuditSink is a light-weight best-effort emitter used by the membership
//     and invitation managers to describe every membership mutation. Errors
//     are logged, never propagated, so sinks can forward to a database or a
//     queue without blocking the request path.
//
// Persistence is abstracted behind MembershipStore and InvitationStore; the
// package ships in-memory implementations alongside Bun-backed repositories.
package access
