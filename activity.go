package access

import (
	"context"
	"time"
)

// AuditEventType enumerates the auditable mutations of this core.
type AuditEventType string

const (
	AuditEventMembershipAdded       AuditEventType = "membership.added"
	AuditEventMembershipRoleChanged AuditEventType = "membership.role.changed"
	AuditEventMembershipRemoved     AuditEventType = "membership.removed"
	AuditEventInvitationCreated     AuditEventType = "invitation.created"
	AuditEventInvitationAccepted    AuditEventType = "invitation.accepted"
	AuditEventInvitationCancelled   AuditEventType = "invitation.cancelled"
	AuditEventInvitationResent      AuditEventType = "invitation.resent"
	AuditEventTokenRevoked          AuditEventType = "auth.token.revoked"
)

// ActorRef identifies who/what triggered a mutation.
type ActorRef struct {
	ID   string
	Type string
}

// AuditEvent captures actor, action, account and target for a mutation.
type AuditEvent struct {
	EventType  AuditEventType
	Actor      ActorRef
	AccountID  string
	Target     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// AuditSink consumes audit events. Emission is fire-and-forget from the
// caller's perspective: sink errors are logged, never propagated.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// AuditSinkFunc adapts a function to the AuditSink interface.
type AuditSinkFunc func(ctx context.Context, event AuditEvent) error

// Record implements AuditSink.
func (f AuditSinkFunc) Record(ctx context.Context, event AuditEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopAuditSink struct{}

func (noopAuditSink) Record(context.Context, AuditEvent) error {
	return nil
}

func normalizeAuditSink(s AuditSink) AuditSink {
	if s == nil {
		return noopAuditSink{}
	}
	return s
}
