// Package session implements the credential engine behind login state:
// multi-device sessions with single-use refresh-secret rotation, stolen-token
// reuse detection, and per-session/per-user revocation.
//
// Access tokens are short-lived signed JWTs and are never stored server-side.
// Refresh secrets are opaque random strings stored only as Argon2id hashes.
// Rotation is guarded by a conditional store update, so two racing refresh
// calls for the same session can never both succeed.
//
// Transport (HTTP/WS) integration is intentionally out of scope here.
package session
