package twogate

import (
	"log"
	"time"

	"github.com/veldran/twogate/internal/audit"
	"github.com/veldran/twogate/internal/metrics"
	"github.com/veldran/twogate/internal/rate"
	"github.com/veldran/twogate/jwt"
	"github.com/veldran/twogate/session"
)

// Engine is the two-factor authentication gate. It owns the full login state
// machine (password step, pending challenge, OTP step, session issuance) and
// delegates durable state to a [CredentialStore] and Redis.
//
// Construct through [New] and the builder methods; the zero value is unusable.
// All exported methods are safe for concurrent use.
type Engine struct {
	config Config

	creds        CredentialStore
	otpCounters  OTPCounterStore
	lockout      *lockoutPolicy
	passwordHash PasswordHasher
	otp          OTPProvider

	pending  *pendingLoginStore
	sessions *session.Store
	tokens   *jwt.Manager

	rateLimiter *rate.Limiter
	audit       *audit.Dispatcher
	metrics     *metrics.Metrics

	now func() time.Time
}

// Close stops background workers. The audit dispatcher drains its buffer
// before returning.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot copies the engine's counters. Empty when metrics are
// disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events discarded under buffer pressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) warn(format string, args ...any) {
	log.Printf("twogate: "+format, args...)
}
