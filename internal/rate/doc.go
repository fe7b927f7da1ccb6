// Package rate provides the Redis-backed fixed-window admission limiter used
// in front of the twogate authentication endpoints.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. One key per
// (endpoint, client address) pair under the "tgr:" prefix.
//
// # What this package must NOT do
//
//   - Track per-account failures (that is the lockout policy's job, and it is
//     durable rather than windowed).
//   - Be imported outside the twogate module.
package rate
