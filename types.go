package twogate

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/veldran/twogate/internal/audit"
	internalmetrics "github.com/veldran/twogate/internal/metrics"
)

// Account is the durable per-user record managed by a [CredentialStore].
//
// Username is immutable once created. PasswordHash is the opaque argon2id PHC
// string; the plaintext is never stored. OTPSecret is the base32-encoded shared
// secret generated at enrollment and never regenerated through the login path.
// LockedUntil is epoch seconds; zero means not locked.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	OTPSecret    string
	FailedLogins int
	LockedUntil  int64
}

// CredentialStore is the only interface to durable account state. Implementations
// must return [ErrDuplicateUsername] from Create and [ErrAccountNotFound] from
// lookups on the named conditions (wrapped values are fine).
//
// RecordFailure and ResetFailures must be atomic per account: two concurrent
// failed logins for the same username must observe distinct counter values.
// A single server-side statement is the expected implementation, not a
// read-modify-write in application code.
type CredentialStore interface {
	// Create inserts a new account with zeroed failure state.
	Create(ctx context.Context, username, passwordHash, otpSecret string) (Account, error)
	// Find returns the account consistent with the latest committed write.
	Find(ctx context.Context, username string) (Account, error)
	// RecordFailure increments the failure counter and, when the post-increment
	// count reaches threshold, sets locked_until to lockedUntil. It reports the
	// resulting counter and lock expiry.
	RecordFailure(ctx context.Context, username string, threshold int, lockedUntil int64) (failed int, locked int64, err error)
	// ResetFailures zeroes the counter and clears any lock.
	ResetFailures(ctx context.Context, username string) error
	// UpdateFailureState overwrites both mutable counters. Idempotent; intended
	// for administrative correction, not the login path.
	UpdateFailureState(ctx context.Context, username string, failedLogins int, lockedUntil int64) error
	// List returns every account. Reachable only through the dev surface.
	List(ctx context.Context) ([]Account, error)
}

// OTPCounterStore is an optional [CredentialStore] extension enabling TOTP
// replay protection. UpdateOTPCounter persists counter for the account only if
// it is strictly greater than the stored value, reporting whether it advanced.
type OTPCounterStore interface {
	UpdateOTPCounter(ctx context.Context, username string, counter int64) (bool, error)
}

// PasswordHasher abstracts the memory-hard password hash so tests can substitute
// deterministic fakes. The default implementation is [password.Argon2].
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// OTPProvider abstracts one-time-password generation and verification.
// VerifyCode reports whether code is valid for the secret at the given instant
// and, when valid, the time-step counter that matched. CurrentCode computes
// the code for the step containing the instant.
type OTPProvider interface {
	GenerateSecret() (string, error)
	ProvisionURI(secretBase32, account string) string
	CurrentCode(secretBase32 string, at time.Time) (string, error)
	VerifyCode(secretBase32, code string, at time.Time) (bool, int64, error)
}

// Enrollment is returned by [Engine.Register]. SecretBase32 and the otpauth://
// ProvisioningURI are handed to an external QR renderer; twogate does not
// interpret the image.
type Enrollment struct {
	Username        string
	SecretBase32    string
	ProvisioningURI string
}

// LoginChallenge is returned by [Engine.PasswordLogin] after a successful
// password step. The challenge ID is opaque and single-use; it expires at
// ExpiresAt if the OTP step never resolves it.
type LoginChallenge struct {
	ChallengeID string
	ExpiresAt   time.Time
}

// AuthResult is the terminal state of a login, returned by [Engine.VerifyOTP]
// and [Engine.Validate].
type AuthResult struct {
	Username    string
	SessionID   string
	AccessToken string
	ExpiresAt   time.Time
}

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events, one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricRegisterSuccess counts completed enrollments.
	MetricRegisterSuccess = internalmetrics.MetricRegisterSuccess
	// MetricRegisterDuplicate counts enrollment attempts on taken usernames.
	MetricRegisterDuplicate = internalmetrics.MetricRegisterDuplicate
	// MetricRegisterRejected counts enrollments rejected by input validation.
	MetricRegisterRejected = internalmetrics.MetricRegisterRejected
	// MetricPasswordVerified counts successful password steps.
	MetricPasswordVerified = internalmetrics.MetricPasswordVerified
	// MetricLoginFailure counts failed password steps.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricLoginLocked counts attempts rejected by an active lockout.
	MetricLoginLocked = internalmetrics.MetricLoginLocked
	// MetricLockoutTriggered counts failures that tripped the lockout threshold.
	MetricLockoutTriggered = internalmetrics.MetricLockoutTriggered
	// MetricRateLimited counts requests rejected by the admission limiter.
	MetricRateLimited = internalmetrics.MetricRateLimited
	// MetricOTPSuccess counts valid OTP submissions.
	MetricOTPSuccess = internalmetrics.MetricOTPSuccess
	// MetricOTPFailure counts invalid OTP submissions.
	MetricOTPFailure = internalmetrics.MetricOTPFailure
	// MetricOTPReplay counts replayed codes or double-spent challenges.
	MetricOTPReplay = internalmetrics.MetricOTPReplay
	// MetricSessionCreated counts authenticated sessions opened.
	MetricSessionCreated = internalmetrics.MetricSessionCreated
	// MetricLogout counts explicit session destructions.
	MetricLogout = internalmetrics.MetricLogout
)

// Metrics holds the engine's atomic counters.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{Enabled: cfg.Enabled})
}
