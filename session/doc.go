// Package session stores authenticated twogate sessions in Redis. A session
// holds only the username; it is created when the OTP step succeeds and
// destroyed by logout or TTL expiry.
package session
