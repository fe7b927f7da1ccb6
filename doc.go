// Package twogate implements a two-factor authentication gate: argon2id password
// verification, time-based one-time passwords, durable per-account lockout, and
// per-address rate limiting, orchestrated as a two-step login state machine.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// twogate is the public surface. It exposes [Engine], [Builder], [Config], the
// [CredentialStore] contract, and value types (Enrollment, LoginChallenge,
// AuthResult). Coordination details such as rate-limit keys, audit dispatch, and
// metric counters live under internal/ and are never exported.
//
// # Login protocol
//
// A login is two transitions. [Engine.PasswordLogin] checks the lockout gate and
// the password hash; success opens a short-lived pending challenge in Redis
// carrying the account's OTP secret snapshot. [Engine.VerifyOTP] resolves the
// challenge: a valid code destroys it, creates an authenticated session, and
// issues an access token; an invalid code leaves it in place for retry.
//
// # What this package must NOT do
//
//   - Render HTML, produce QR images, or route HTTP (consumers own transport;
//     the provisioning URI string is the only enrollment artifact).
//   - Expose Redis clients, store internals, or codec details in its public API.
//   - Hold plaintext passwords beyond the call that received them.
package twogate
