package twogate

import (
	"context"
	"time"
)

// lockoutPolicy enforces the per-account failure budget. The lock is lazy:
// nothing clears locked_until when it passes, gate simply compares it to the
// current time, and the next successful login resets it.
type lockoutPolicy struct {
	store  CredentialStore
	config LockoutConfig
}

func newLockoutPolicy(store CredentialStore, cfg LockoutConfig) *lockoutPolicy {
	return &lockoutPolicy{store: store, config: cfg}
}

// gate rejects the attempt while the account's lock window is active. It runs
// before password verification so locked accounts never reach the hasher.
func (p *lockoutPolicy) gate(acct *Account, now time.Time) error {
	if acct.LockedUntil > now.Unix() {
		return ErrAccountLocked
	}
	return nil
}

// onFailure records a password mismatch and reports whether this failure
// tripped the threshold. The increment-and-maybe-lock is a single store
// operation so concurrent failures cannot lose counts.
func (p *lockoutPolicy) onFailure(ctx context.Context, username string, now time.Time) (bool, error) {
	lockUntil := now.Add(p.config.Duration).Unix()
	failed, locked, err := p.store.RecordFailure(ctx, username, p.config.Threshold, lockUntil)
	if err != nil {
		return false, err
	}
	return failed >= p.config.Threshold && locked >= lockUntil, nil
}

// onSuccess clears the failure counter and any lock after a correct password.
func (p *lockoutPolicy) onSuccess(ctx context.Context, username string) error {
	return p.store.ResetFailures(ctx, username)
}
