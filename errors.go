package twogate

import "errors"

var (
	// ErrEngineNotReady is returned when a required collaborator was not wired
	// through the builder before use.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrValidation indicates bad caller input (empty username or password).
	ErrValidation = errors.New("username and password are required")
	// ErrPasswordPolicy indicates the password failed the length policy at enrollment.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrDuplicateUsername is returned when registering an identifier that already exists.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrAccountNotFound is the credential store's lookup miss. The login path never
	// surfaces it to callers; it collapses into ErrInvalidCredentials.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials covers both unknown usernames and password mismatches.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the account's lockout window is active.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrPasswordHashInvalid indicates a stored hash that the verifier cannot parse.
	// This is a deployment defect, never a user-facing outcome.
	ErrPasswordHashInvalid = errors.New("stored password hash invalid")
	// ErrRateLimited is returned when the per-address admission budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrChallengeInvalid is returned when the pending login challenge does not exist.
	// Callers should send the user back to the password step.
	ErrChallengeInvalid = errors.New("login challenge invalid")
	// ErrChallengeExpired is returned when the pending login challenge has timed out.
	ErrChallengeExpired = errors.New("login challenge expired")
	// ErrChallengeUnavailable indicates the challenge backend is unreachable.
	ErrChallengeUnavailable = errors.New("login challenge backend unavailable")
	// ErrOTPInvalid is returned for a code outside the accepted time window.
	ErrOTPInvalid = errors.New("invalid or expired otp code")
	// ErrOTPAttemptsExceeded is returned once a capped challenge runs out of guesses.
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
	// ErrOTPReplay is returned when a code or challenge is spent twice.
	ErrOTPReplay = errors.New("otp replay detected")
	// ErrStoreUnavailable indicates a backing store (credential store or Redis)
	// failed mid-request.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrSessionNotFound is returned when the referenced session no longer exists.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenInvalid is returned for unparsable, expired, or foreign tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrDevViewDisabled guards the account listing in default deployments.
	ErrDevViewDisabled = errors.New("dev account view disabled")
)
