package twogate

import (
	"errors"
	"time"
)

// Config holds all engine tuning parameters.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable.
type Config struct {
	Issuer   string
	Password PasswordConfig
	Lockout  LockoutConfig
	TOTP     TOTPConfig
	Login    LoginConfig
	Session  SessionConfig
	Token    TokenConfig
	Rate     RateConfig
	Dev      DevConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries the argon2id cost parameters and the enrollment
// length policy. MinLength is enforced by the engine, not the hasher.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the per-account failure policy: after Threshold
// consecutive password mismatches the account is locked for Duration.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig controls code derivation. Skew is the number of adjacent
// time steps accepted on either side of the current one.
type TOTPConfig struct {
	Digits       int
	Period       int
	Algorithm    string // "SHA1" (default), "SHA256", "SHA512"
	Skew         int
	SecretLength int // raw secret bytes before base32 encoding
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig controls the pending two-factor step between password
// verification and OTP verification.
//
// MaxOTPAttempts of zero leaves OTP guesses uncapped, matching the historical
// behavior this gate replaces; attempts are still counted on the challenge.
// EnforceReplayProtection rejects codes at or below the account's last used
// time-step counter and requires the credential store to implement
// [OTPCounterStore].
type LoginConfig struct {
	ChallengeTTL            time.Duration
	MaxOTPAttempts          int
	EnforceReplayProtection bool
}

/*
====================================
SESSION / TOKEN CONFIG
====================================
*/

// SessionConfig controls the authenticated session store.
type SessionConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

// TokenConfig controls the HS256 access token referencing a session.
// A zero AccessTTL inherits the session TTL.
type TokenConfig struct {
	Secret    []byte
	AccessTTL time.Duration
}

/*
====================================
RATE CONFIG
====================================
*/

// RateConfig is the per-address admission budget, applied before the state
// machine runs and independent of per-account lockout. Limits are requests
// per Window per client address and endpoint.
type RateConfig struct {
	Enabled     bool
	Window      time.Duration
	RegisterMax int
	LoginMax    int
	VerifyMax   int
}

/*
====================================
DEV / AUDIT / METRICS CONFIG
====================================
*/

// DevConfig gates development-only surfaces. ExposeSecrets must stay false in
// any real deployment; it unlocks [Engine.DevListAccounts].
type DevConfig struct {
	ExposeSecrets bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the engine defaults. Token.Secret is intentionally
// empty and must be set before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Issuer: "twogate",
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  5 * time.Minute,
		},
		TOTP: TOTPConfig{
			Digits:       6,
			Period:       30,
			Algorithm:    "SHA1",
			Skew:         1,
			SecretLength: 20,
		},
		Login: LoginConfig{
			ChallengeTTL:            3 * time.Minute,
			MaxOTPAttempts:          0,
			EnforceReplayProtection: false,
		},
		Session: SessionConfig{
			RedisPrefix: "tgs",
			TTL:         30 * time.Minute,
		},
		Token: TokenConfig{
			AccessTTL: 0,
		},
		Rate: RateConfig{
			Enabled:     true,
			Window:      time.Minute,
			RegisterMax: 10,
			LoginMax:    20,
			VerifyMax:   30,
		},
		Dev: DevConfig{
			ExposeSecrets: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot operate with.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return errors.New("Issuer must be set")
	}

	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
		return errors.New("TOTP Digits must be between 6 and 10")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be between 0 and 2")
	}
	if c.TOTP.SecretLength < 20 {
		return errors.New("TOTP SecretLength must be >= 20 bytes")
	}
	switch c.TOTP.Algorithm {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("unsupported TOTP algorithm")
	}

	if c.Login.ChallengeTTL <= 0 {
		return errors.New("Login ChallengeTTL must be > 0")
	}
	if c.Login.MaxOTPAttempts < 0 {
		return errors.New("Login MaxOTPAttempts must be >= 0")
	}

	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must be set")
	}

	if len(c.Token.Secret) < 32 {
		return errors.New("Token Secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL < 0 {
		return errors.New("Token AccessTTL must be >= 0")
	}

	if c.Rate.Enabled {
		if c.Rate.Window <= 0 {
			return errors.New("Rate Window must be > 0")
		}
		if c.Rate.RegisterMax < 1 || c.Rate.LoginMax < 1 || c.Rate.VerifyMax < 1 {
			return errors.New("Rate limits must be >= 1")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
