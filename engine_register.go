package twogate

import (
	"context"
	"errors"
	"strings"

	"github.com/veldran/twogate/internal/rate"
)

// Register enrolls a new account: hashes the password, generates a TOTP
// secret, and persists the account with zeroed failure state. The returned
// [Enrollment] carries the secret and provisioning URI for a QR renderer;
// this is the only time the secret leaves the engine through a non-dev path.
func (e *Engine) Register(ctx context.Context, username, pass string) (*Enrollment, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.admit(ctx, rate.EndpointRegister); err != nil {
		return nil, err
	}

	username = strings.TrimSpace(username)
	if username == "" || pass == "" {
		e.metricInc(MetricRegisterRejected)
		e.emitAudit(ctx, auditEventRegister, false, username, "", ErrValidation, nil)
		return nil, ErrValidation
	}
	if len(pass) < e.config.Password.MinLength {
		e.metricInc(MetricRegisterRejected)
		e.emitAudit(ctx, auditEventRegister, false, username, "", ErrPasswordPolicy, nil)
		return nil, ErrPasswordPolicy
	}

	hash, err := e.passwordHash.Hash(pass)
	if err != nil {
		return nil, err
	}

	secret, err := e.otp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	acct, err := e.creds.Create(ctx, username, hash, secret)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegister, false, username, "", err, nil)
			return nil, err
		}
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, acct.Username, "", nil, nil)

	return &Enrollment{
		Username:        acct.Username,
		SecretBase32:    secret,
		ProvisioningURI: e.otp.ProvisionURI(secret, acct.Username),
	}, nil
}

// admit applies the per-address rate budget for one endpoint.
func (e *Engine) admit(ctx context.Context, endpoint string) error {
	err := e.rateLimiter.Allow(ctx, endpoint, clientIPFromContext(ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		e.metricInc(MetricRateLimited)
		e.emitAudit(ctx, auditEventRateLimited, false, "", "", ErrRateLimited, func() map[string]string {
			return map[string]string{"endpoint": endpoint}
		})
		return ErrRateLimited
	}
	e.warn("rate limiter backend error: %v", err)
	return ErrStoreUnavailable
}
