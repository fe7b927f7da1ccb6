package twogate

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veldran/twogate/internal/rate"
	"github.com/veldran/twogate/jwt"
	"github.com/veldran/twogate/password"
	"github.com/veldran/twogate/session"
)

// Builder assembles an [Engine]. Usage:
//
//	engine, err := twogate.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithCredentials(store).
//		Build()
type Builder struct {
	config    Config
	hasConfig bool

	redis     redis.UniversalClient
	creds     CredentialStore
	hasher    PasswordHasher
	otp       OTPProvider
	auditSink AuditSink
	clock     func() time.Time
}

// New starts a Builder with defaults applied.
func New() *Builder {
	return &Builder{}
}

// WithConfig replaces the default configuration. The config is cloned; later
// mutation of cfg does not affect the built engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	b.hasConfig = true
	return b
}

// WithRedis sets the Redis client backing challenges, sessions, and rate
// limiting. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentials sets the durable account store. Required.
func (b *Builder) WithCredentials(store CredentialStore) *Builder {
	b.creds = store
	return b
}

// WithPasswordHasher overrides the default argon2id hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithOTPProvider overrides the default TOTP provider.
func (b *Builder) WithOTPProvider(p OTPProvider) *Builder {
	b.otp = p
	return b
}

// WithAuditSink sets the destination for audit events. Only consulted when
// Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine's time source. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration, wires all collaborators, and returns a
// ready Engine.
func (b *Builder) Build() (*Engine, error) {
	cfg := b.config
	if !b.hasConfig {
		cfg = defaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.creds == nil {
		return nil, errors.New("credential store is required")
	}

	var otpCounters OTPCounterStore
	if cfg.Login.EnforceReplayProtection {
		cs, ok := b.creds.(OTPCounterStore)
		if !ok {
			return nil, errors.New("replay protection requires a credential store implementing OTPCounterStore")
		}
		otpCounters = cs
	}

	hasher := b.hasher
	if hasher == nil {
		a, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		hasher = a
	}

	otp := b.otp
	if otp == nil {
		otp = newTOTPManager(cfg.Issuer, cfg.TOTP)
	}

	accessTTL := cfg.Token.AccessTTL
	if accessTTL == 0 {
		accessTTL = cfg.Session.TTL
	}
	tokens, err := jwt.NewManager(jwt.Config{
		Secret:    cfg.Token.Secret,
		AccessTTL: accessTTL,
		Issuer:    cfg.Issuer,
		Leeway:    30 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config:       cfg,
		creds:        b.creds,
		otpCounters:  otpCounters,
		lockout:      newLockoutPolicy(b.creds, cfg.Lockout),
		passwordHash: hasher,
		otp:          otp,
		pending:      newPendingLoginStore(b.redis),
		sessions:     session.NewStore(b.redis, cfg.Session.RedisPrefix),
		tokens:       tokens,
		rateLimiter: rate.New(b.redis, rate.Config{
			Enabled:     cfg.Rate.Enabled,
			Window:      cfg.Rate.Window,
			RegisterMax: cfg.Rate.RegisterMax,
			LoginMax:    cfg.Rate.LoginMax,
			VerifyMax:   cfg.Rate.VerifyMax,
		}),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		now:     clock,
	}

	return engine, nil
}
