package twogate

import (
	"context"
	"strconv"
)

// DevListAccounts returns every account including OTP secrets and failure
// state. It exists for local development against a throwaway database and is
// refused unless Dev.ExposeSecrets was set explicitly.
func (e *Engine) DevListAccounts(ctx context.Context) ([]Account, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Dev.ExposeSecrets {
		return nil, ErrDevViewDisabled
	}

	accounts, err := e.creds.List(ctx)
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	e.emitAudit(ctx, auditEventDevAccountsRead, true, "", "", nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(len(accounts))}
	})

	return accounts, nil
}
