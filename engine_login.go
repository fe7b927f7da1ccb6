package twogate

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/veldran/twogate/internal/rate"
)

// PasswordLogin is the first step of the login state machine. On a correct
// password it resets the failure counter and opens a pending challenge; the
// caller must resolve it with [Engine.VerifyOTP] before the TTL runs out.
//
// Unknown usernames and wrong passwords both come back as
// [ErrInvalidCredentials]. A locked account is rejected before the password
// is examined.
func (e *Engine) PasswordLogin(ctx context.Context, username, pass string) (*LoginChallenge, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.admit(ctx, rate.EndpointLogin); err != nil {
		return nil, err
	}

	username = strings.TrimSpace(username)
	if username == "" || pass == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventPasswordStep, false, username, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	now := e.now()

	acct, err := e.creds.Find(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Same outcome as a wrong password: no username probing.
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventPasswordStep, false, username, "", ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		e.warn("credential store lookup failed: %v", err)
		return nil, ErrStoreUnavailable
	}

	if err := e.lockout.gate(&acct, now); err != nil {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLockout, false, username, "", err, nil)
		return nil, err
	}

	ok, err := e.passwordHash.Verify(pass, acct.PasswordHash)
	if err != nil {
		e.warn("stored hash for %q is unverifiable: %v", username, err)
		return nil, ErrPasswordHashInvalid
	}

	if !ok {
		justLocked, ferr := e.lockout.onFailure(ctx, username, now)
		if ferr != nil {
			e.warn("failure bookkeeping for %q failed: %v", username, ferr)
			return nil, ErrStoreUnavailable
		}
		e.metricInc(MetricLoginFailure)
		if justLocked {
			e.metricInc(MetricLockoutTriggered)
			e.emitAudit(ctx, auditEventLockout, false, username, "", ErrAccountLocked, nil)
			return nil, ErrAccountLocked
		}
		e.emitAudit(ctx, auditEventPasswordStep, false, username, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if err := e.lockout.onSuccess(ctx, username); err != nil {
		e.warn("failure reset for %q failed: %v", username, err)
		return nil, ErrStoreUnavailable
	}

	challengeID := uuid.New().String()
	expiresAt := now.Add(e.config.Login.ChallengeTTL)
	rec := &pendingLogin{
		Username:  acct.Username,
		Secret:    acct.OTPSecret,
		ExpiresAt: expiresAt.Unix(),
	}
	if err := e.pending.Save(ctx, challengeID, rec, e.config.Login.ChallengeTTL); err != nil {
		e.warn("challenge save failed: %v", err)
		return nil, ErrChallengeUnavailable
	}

	e.metricInc(MetricPasswordVerified)
	e.emitAudit(ctx, auditEventPasswordStep, true, acct.Username, "", nil, nil)

	return &LoginChallenge{
		ChallengeID: challengeID,
		ExpiresAt:   expiresAt,
	}, nil
}
