package access

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Membership is the relation granting a user a role within an account.
// At most one row exists per (account, user) pair, and every account keeps
// at least one owner at all times. The invariant is enforced at mutation
// time by MembershipManager, not as a database constraint.
type Membership struct {
	bun.BaseModel `bun:"table:account_memberships,alias:mbr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid,unique:account_user" json:"account_id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid,unique:account_user" json:"user_id,omitempty"`
	Role          Role       `bun:"role,notnull" json:"role,omitempty"`
	JoinedAt      *time.Time `bun:"joined_at,nullzero,default:current_timestamp" json:"joined_at,omitempty"`
}

// MembershipManager guards every membership mutation: role validity, the
// sole-owner invariant, and audit emission. The guard chain consumes it for
// role resolution but never mutates through anything else.
type MembershipManager struct {
	store     MembershipStore
	auditSink AuditSink
	logger    Logger
	now       func() time.Time
}

// MembershipOption customizes MembershipManager construction.
type MembershipOption func(*MembershipManager)

// WithMembershipAuditSink sets the AuditSink notified on every mutation.
func WithMembershipAuditSink(sink AuditSink) MembershipOption {
	return func(m *MembershipManager) {
		m.auditSink = normalizeAuditSink(sink)
	}
}

// WithMembershipLogger overrides the default logger.
func WithMembershipLogger(logger Logger) MembershipOption {
	return func(m *MembershipManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMembershipClock injects a custom clock (useful for tests).
func WithMembershipClock(clock func() time.Time) MembershipOption {
	return func(m *MembershipManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// NewMembershipManager returns a manager backed by the provided store.
func NewMembershipManager(store MembershipStore, opts ...MembershipOption) *MembershipManager {
	m := &MembershipManager{
		store:     store,
		auditSink: noopAuditSink{},
		logger:    defLogger{},
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Resolve looks up the membership granting userID a role in accountID.
// Lookup misses surface as ErrMembershipNotFound; transient store failures
// wrap as internal errors so callers never read them as "not a member".
func (m *MembershipManager) Resolve(ctx context.Context, accountID, userID uuid.UUID) (*Membership, error) {
	membership, err := m.store.GetMembership(ctx, accountID, userID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, internalError(err)
	}
	return membership, nil
}

// Add grants userID the given role in accountID. Rejects invalid roles and
// duplicate memberships.
func (m *MembershipManager) Add(ctx context.Context, actor ActorRef, accountID, userID uuid.UUID, role Role) (*Membership, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole.WithMetadata(map[string]any{"role": role})
	}

	if existing, err := m.store.GetMembership(ctx, accountID, userID); err == nil && existing != nil {
		return nil, ErrAlreadyMember.WithMetadata(map[string]any{
			"account_id": accountID.String(),
			"user_id":    userID.String(),
		})
	} else if err != nil && !IsNotFound(err) {
		return nil, internalError(err)
	}

	now := m.now()
	membership, err := m.store.UpsertMembership(ctx, &Membership{
		AccountID: accountID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  &now,
	})
	if err != nil {
		return nil, internalError(err)
	}

	m.recordAudit(ctx, AuditEvent{
		EventType: AuditEventMembershipAdded,
		Actor:     actor,
		AccountID: accountID.String(),
		Target:    userID.String(),
		Metadata:  map[string]any{"role": string(role)},
	})

	return membership, nil
}

// ChangeRole updates the role of an existing membership. Downgrading the
// sole remaining owner fails with ErrSoleOwnerViolation.
func (m *MembershipManager) ChangeRole(ctx context.Context, actor ActorRef, accountID, userID uuid.UUID, newRole Role) (*Membership, error) {
	if !newRole.IsValid() {
		return nil, ErrInvalidRole.WithMetadata(map[string]any{"role": newRole})
	}

	membership, err := m.Resolve(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}

	if membership.Role == newRole {
		return membership, nil
	}

	if membership.Role == RoleOwner && newRole != RoleOwner {
		if err := m.ensureNotSoleOwner(ctx, accountID, userID); err != nil {
			return nil, err
		}
	}

	previous := membership.Role
	membership.Role = newRole

	updated, err := m.store.UpsertMembership(ctx, membership)
	if err != nil {
		return nil, internalError(err)
	}

	m.recordAudit(ctx, AuditEvent{
		EventType: AuditEventMembershipRoleChanged,
		Actor:     actor,
		AccountID: accountID.String(),
		Target:    userID.String(),
		Metadata: map[string]any{
			"from": string(previous),
			"to":   string(newRole),
		},
	})

	return updated, nil
}

// Remove deletes the membership. Removing the sole remaining owner fails
// with ErrSoleOwnerViolation.
func (m *MembershipManager) Remove(ctx context.Context, actor ActorRef, accountID, userID uuid.UUID) error {
	membership, err := m.Resolve(ctx, accountID, userID)
	if err != nil {
		return err
	}

	if membership.Role == RoleOwner {
		if err := m.ensureNotSoleOwner(ctx, accountID, userID); err != nil {
			return err
		}
	}

	if err := m.store.DeleteMembership(ctx, accountID, userID); err != nil {
		if IsNotFound(err) {
			return err
		}
		return internalError(err)
	}

	m.recordAudit(ctx, AuditEvent{
		EventType: AuditEventMembershipRemoved,
		Actor:     actor,
		AccountID: accountID.String(),
		Target:    userID.String(),
		Metadata:  map[string]any{"role": string(membership.Role)},
	})

	return nil
}

// Leave removes the actor's own membership, subject to the same owner
// invariant as Remove.
func (m *MembershipManager) Leave(ctx context.Context, actor ActorRef, accountID uuid.UUID) error {
	userID, err := uuid.Parse(actor.ID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "actor id is not a valid user id")
	}
	return m.Remove(ctx, actor, accountID, userID)
}

// PurgeAccount removes every membership of an account. Used when the
// owning account aggregate is deleted; the cascade also covers invitations
// via InvitationManager.PurgeAccount.
func (m *MembershipManager) PurgeAccount(ctx context.Context, accountID uuid.UUID) error {
	if err := m.store.DeleteByAccount(ctx, accountID); err != nil {
		return internalError(err)
	}
	return nil
}

// ensureNotSoleOwner fails when userID is the only owner of accountID.
func (m *MembershipManager) ensureNotSoleOwner(ctx context.Context, accountID, userID uuid.UUID) error {
	members, err := m.store.GetMembers(ctx, accountID)
	if err != nil {
		return internalError(err)
	}

	for _, member := range members {
		if member.Role == RoleOwner && member.UserID != userID {
			return nil
		}
	}

	return ErrSoleOwnerViolation.WithMetadata(map[string]any{
		"account_id": accountID.String(),
		"user_id":    userID.String(),
	})
}

func (m *MembershipManager) recordAudit(ctx context.Context, event AuditEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}

	sink := normalizeAuditSink(m.auditSink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("membership audit sink error: %v", err)
	}
}
