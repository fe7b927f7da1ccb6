package twogate

import (
	"context"
	"errors"

	"github.com/veldran/twogate/internal"
	"github.com/veldran/twogate/internal/rate"
	"github.com/veldran/twogate/session"
)

// VerifyOTP is the second step of the login state machine. It resolves the
// pending challenge opened by [Engine.PasswordLogin]: a valid code consumes
// the challenge exactly once and yields an authenticated session plus an
// access token referencing it.
func (e *Engine) VerifyOTP(ctx context.Context, challengeID, code string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.admit(ctx, rate.EndpointVerify); err != nil {
		return nil, err
	}

	now := e.now()

	rec, err := e.pending.Get(ctx, challengeID, now)
	if err != nil {
		return nil, e.mapPendingErr(ctx, challengeID, err)
	}

	valid, counter, err := e.otp.VerifyCode(rec.Secret, code, now)
	if err != nil {
		e.warn("otp verification for %q failed: %v", rec.Username, err)
		return nil, ErrOTPInvalid
	}

	if !valid {
		ferr := e.pending.RecordFailure(ctx, challengeID, e.config.Login.MaxOTPAttempts)
		e.metricInc(MetricOTPFailure)
		if errors.Is(ferr, errPendingExceeded) {
			e.emitAudit(ctx, auditEventOTPStep, false, rec.Username, "", ErrOTPAttemptsExceeded, nil)
			return nil, ErrOTPAttemptsExceeded
		}
		if errors.Is(ferr, errPendingBackend) {
			e.warn("challenge bookkeeping for %q failed: %v", rec.Username, ferr)
			return nil, ErrChallengeUnavailable
		}
		// A challenge that vanished or expired between Get and RecordFailure
		// still reads as a bad code to the caller.
		e.emitAudit(ctx, auditEventOTPStep, false, rec.Username, "", ErrOTPInvalid, nil)
		return nil, ErrOTPInvalid
	}

	if e.otpCounters != nil {
		advanced, cerr := e.otpCounters.UpdateOTPCounter(ctx, rec.Username, counter)
		if cerr != nil {
			e.warn("otp counter update for %q failed: %v", rec.Username, cerr)
			return nil, ErrStoreUnavailable
		}
		if !advanced {
			e.metricInc(MetricOTPReplay)
			e.emitAudit(ctx, auditEventOTPStep, false, rec.Username, "", ErrOTPReplay, nil)
			return nil, ErrOTPReplay
		}
	}

	// Single-use guarantee: whichever concurrent verifier deletes the
	// challenge wins; everyone else sees a replay.
	deleted, err := e.pending.Delete(ctx, challengeID)
	if err != nil {
		return nil, ErrChallengeUnavailable
	}
	if !deleted {
		e.metricInc(MetricOTPReplay)
		e.emitAudit(ctx, auditEventOTPStep, false, rec.Username, "", ErrOTPReplay, nil)
		return nil, ErrOTPReplay
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	sessionID := sid.String()
	expiresAt := now.Add(e.config.Session.TTL)

	sess := &session.Session{
		SessionID: sessionID,
		Username:  rec.Username,
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}
	if err := e.sessions.Save(ctx, sess, e.config.Session.TTL); err != nil {
		e.warn("session save failed: %v", err)
		return nil, ErrStoreUnavailable
	}

	token, err := e.tokens.Issue(rec.Username, sessionID, now)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricOTPSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventOTPStep, true, rec.Username, sessionID, nil, nil)
	e.emitAudit(ctx, auditEventSessionCreated, true, rec.Username, sessionID, nil, nil)

	return &AuthResult{
		Username:    rec.Username,
		SessionID:   sessionID,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// AbandonLogin discards a pending challenge without completing it. Idempotent.
func (e *Engine) AbandonLogin(ctx context.Context, challengeID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	deleted, err := e.pending.Delete(ctx, challengeID)
	if err != nil {
		return ErrChallengeUnavailable
	}
	if deleted {
		e.emitAudit(ctx, auditEventLoginAbandoned, true, "", "", nil, nil)
	}
	return nil
}

// Logout destroys the session referenced by the access token. Unknown or
// already-destroyed sessions are not an error.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(accessToken)
	if err != nil {
		return ErrTokenInvalid
	}

	deleted, err := e.sessions.Delete(ctx, claims.SessionID)
	if err != nil {
		return ErrStoreUnavailable
	}
	if deleted {
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, claims.Subject, claims.SessionID, nil, nil)
	}
	return nil
}

// Validate checks an access token against the live session store and returns
// the authenticated identity. A token whose session is gone is invalid even
// when its signature and expiry still hold.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(accessToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	sess, err := e.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, ErrStoreUnavailable
	}
	if sess.Username != claims.Subject {
		return nil, ErrTokenInvalid
	}

	return &AuthResult{
		Username:    sess.Username,
		SessionID:   sess.SessionID,
		AccessToken: accessToken,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (e *Engine) mapPendingErr(ctx context.Context, challengeID string, err error) error {
	switch {
	case errors.Is(err, errPendingNotFound):
		e.emitAudit(ctx, auditEventOTPStep, false, "", "", ErrChallengeInvalid, nil)
		return ErrChallengeInvalid
	case errors.Is(err, errPendingExpired):
		e.emitAudit(ctx, auditEventOTPStep, false, "", "", ErrChallengeExpired, nil)
		return ErrChallengeExpired
	case errors.Is(err, errPendingExceeded):
		e.metricInc(MetricOTPFailure)
		e.emitAudit(ctx, auditEventOTPStep, false, "", "", ErrOTPAttemptsExceeded, nil)
		return ErrOTPAttemptsExceeded
	default:
		e.warn("challenge backend error for %q: %v", challengeID, err)
		return ErrChallengeUnavailable
	}
}
