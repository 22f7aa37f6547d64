package shared

import (
	"context"

	"github.com/rs/zerolog/log"
)

// AuditRecorder is satisfied by *audit.Service.
type AuditRecorder interface {
	Record(ctx context.Context, orgID, actorID, action, entityType, entityID string, after any) error
}

// RecordAudit writes an audit event after a successful change. A failure is
// logged and never fails the request.
func RecordAudit(ctx context.Context, rec AuditRecorder, orgID, actorID, action, entityType, entityID string, after any) {
	if rec == nil {
		return
	}
	if err := rec.Record(context.WithoutCancel(ctx), orgID, actorID, action, entityType, entityID, after); err != nil {
		log.Warn().Err(err).
			Str("organizationId", orgID).
			Str("action", action).
			Str("entityId", entityID).
			Msg("audit record failed")
	}
}
