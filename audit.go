package twogate

import (
	"context"

	internalaudit "github.com/veldran/twogate/internal/audit"
)

// Audit event types emitted by the engine.
const (
	auditEventRegister        = "register"
	auditEventPasswordStep    = "login.password"
	auditEventLockout         = "login.lockout"
	auditEventOTPStep         = "login.otp"
	auditEventLoginAbandoned  = "login.abandoned"
	auditEventSessionCreated  = "session.created"
	auditEventLogout          = "session.logout"
	auditEventRateLimited     = "rate.limited"
	auditEventDevAccountsRead = "dev.accounts_read"
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

// emitAudit records one security event. Safe with a nil dispatcher; metadata
// is built lazily so disabled audit does not allocate.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, username, sessionID string, failure error, metadataFn func() map[string]string) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Username:  username,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	if metadataFn != nil {
		event.Metadata = metadataFn()
	}

	e.audit.Emit(ctx, event)
}
