package access

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// InvitationStatus is the invitation lifecycle state. pending is the only
// non-terminal state; accepted, cancelled and expired are terminal.
type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "pending"
	InvitationStatusAccepted  InvitationStatus = "accepted"
	InvitationStatusCancelled InvitationStatus = "cancelled"
	InvitationStatusExpired   InvitationStatus = "expired"
)

var invitationTransitions = map[InvitationStatus]map[InvitationStatus]struct{}{
	InvitationStatusPending: {
		InvitationStatusAccepted:  {},
		InvitationStatusCancelled: {},
		InvitationStatusExpired:   {},
	},
}

// IsTerminal reports whether no transition leaves the status.
func (s InvitationStatus) IsTerminal() bool {
	return len(invitationTransitions[s]) == 0
}

func (s InvitationStatus) canTransition(to InvitationStatus) bool {
	if allowed, ok := invitationTransitions[s]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// DefaultInvitationTTL is the lifetime of a freshly minted invitation.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Invitation is a time-boxed, single-use grant of future account
// membership. The token is a capability: knowledge of it proves the right
// to accept.
type Invitation struct {
	bun.BaseModel `bun:"table:account_invitations,alias:inv"`
	ID            uuid.UUID        `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID        `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Email         string           `bun:"email,notnull" json:"email,omitempty"`
	Role          Role             `bun:"role,notnull" json:"role,omitempty"`
	InvitedBy     uuid.UUID        `bun:"invited_by,notnull,type:uuid" json:"invited_by,omitempty"`
	Token         string           `bun:"token,notnull,unique" json:"-"`
	Status        InvitationStatus `bun:"status,notnull" json:"status,omitempty"`
	ExpiresAt     time.Time        `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time       `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	AcceptedAt    *time.Time       `bun:"accepted_at,nullzero" json:"accepted_at,omitempty"`
	AcceptedBy    *uuid.UUID       `bun:"accepted_by,nullzero,type:uuid" json:"accepted_by,omitempty"`
}

// IsExpired reports whether the invitation's expiry has elapsed at now.
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// CreateInvitationRequest carries the fields needed to invite an email
// address into an account.
type CreateInvitationRequest struct {
	AccountID uuid.UUID
	Email     string
	Role      Role
	InvitedBy uuid.UUID
}

// Validate checks structural validity; role membership in the closed
// enumeration is reported as ErrInvalidRole by the manager.
func (r CreateInvitationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Role, validation.Required),
	)
}

// InvitationManager governs the invitation state machine: creation with
// duplicate/member checks, lazy expiry on read, single-use acceptance,
// cancellation, and token rotation on resend.
type InvitationManager struct {
	store     InvitationStore
	members   *MembershipManager
	users     UserResolver
	auditSink AuditSink
	logger    Logger
	now       func() time.Time
	ttl       time.Duration
	newToken  func() (string, error)
}

// InvitationOption customizes InvitationManager construction.
type InvitationOption func(*InvitationManager)

// WithInvitationAuditSink sets the AuditSink notified on lifecycle events.
func WithInvitationAuditSink(sink AuditSink) InvitationOption {
	return func(m *InvitationManager) {
		m.auditSink = normalizeAuditSink(sink)
	}
}

// WithInvitationLogger overrides the default logger.
func WithInvitationLogger(logger Logger) InvitationOption {
	return func(m *InvitationManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithInvitationClock injects a custom clock (useful for tests).
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(m *InvitationManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithInvitationTTL overrides the default 7 day invitation lifetime.
func WithInvitationTTL(ttl time.Duration) InvitationOption {
	return func(m *InvitationManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithInvitationTokenSource overrides capability token generation.
func WithInvitationTokenSource(source func() (string, error)) InvitationOption {
	return func(m *InvitationManager) {
		if source != nil {
			m.newToken = source
		}
	}
}

// NewInvitationManager returns a manager backed by the provided store,
// membership manager and email resolver.
func NewInvitationManager(store InvitationStore, members *MembershipManager, users UserResolver, opts ...InvitationOption) *InvitationManager {
	m := &InvitationManager{
		store:     store,
		members:   members,
		users:     users,
		auditSink: noopAuditSink{},
		logger:    defLogger{},
		now:       time.Now,
		ttl:       DefaultInvitationTTL,
		newToken:  generateInvitationToken,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Create issues a pending invitation. The actor must hold an owner or
// admin membership in the target account. Rejects AlreadyMember when the
// email already maps to a membership, DuplicatePending when a pending
// invitation exists for the (account, email) pair, InvalidRole for roles
// outside the closed enumeration.
func (m *InvitationManager) Create(ctx context.Context, actor ActorRef, req CreateInvitationRequest) (*Invitation, error) {
	if !req.Role.IsValid() {
		return nil, ErrInvalidRole.WithMetadata(map[string]any{"role": req.Role})
	}

	if err := req.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid invitation request")
	}

	if err := m.requireAdministrative(ctx, req.AccountID, req.InvitedBy); err != nil {
		return nil, err
	}

	if err := m.ensureEmailNotMember(ctx, req.AccountID, req.Email); err != nil {
		return nil, err
	}

	// A stale expired-but-still-pending row must not shadow the duplicate
	// check: persist its lazy transition and look again until only a live
	// pending invitation (reject) or none (proceed) remains.
	for {
		pending, err := m.store.GetPending(ctx, req.AccountID, req.Email)
		if err != nil {
			if IsNotFound(err) {
				break
			}
			return nil, internalError(err)
		}
		if !pending.IsExpired(m.now()) {
			return nil, ErrDuplicatePending.WithMetadata(map[string]any{
				"account_id": req.AccountID.String(),
				"email":      req.Email,
			})
		}
		if _, err := m.expireIfStale(ctx, pending); err != nil {
			return nil, err
		}
	}

	token, err := m.newToken()
	if err != nil {
		return nil, internalError(err)
	}

	now := m.now()
	invitation := &Invitation{
		AccountID: req.AccountID,
		Email:     req.Email,
		Role:      req.Role,
		InvitedBy: req.InvitedBy,
		Token:     token,
		Status:    InvitationStatusPending,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: &now,
	}

	created, err := m.store.Create(ctx, invitation)
	if err != nil {
		return nil, internalError(err)
	}

	m.recordAudit(ctx, AuditEvent{
		EventType: AuditEventInvitationCreated,
		Actor:     actor,
		AccountID: req.AccountID.String(),
		Target:    req.Email,
		Metadata:  map[string]any{"role": string(req.Role)},
	})

	return created, nil
}

// FindByToken resolves an invitation by its capability token. Expiry is
// evaluated on read: a pending invitation whose expiry has elapsed is
// transitioned to expired before being returned.
func (m *InvitationManager) FindByToken(ctx context.Context, token string) (*Invitation, error) {
	invitation, err := m.store.GetByToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvitationNotFound
		}
		return nil, internalError(err)
	}

	return m.expireIfStale(ctx, invitation)
}

// Accept transitions a pending, unexpired invitation to accepted and
// creates the corresponding membership for the accepting user. The status
// transition is the replay guard: a second accept attempt fails with
// ErrInvitationNotPending.
func (m *InvitationManager) Accept(ctx context.Context, actor ActorRef, token string) (*Membership, error) {
	userID, err := uuid.Parse(actor.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "actor id is not a valid user id")
	}

	invitation, err := m.store.GetByToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvitationNotFound
		}
		return nil, internalError(err)
	}

	if invitation.Status == InvitationStatusPending && invitation.IsExpired(m.now()) {
		if _, err := m.transition(ctx, invitation, InvitationStatusExpired); err != nil {
			return nil, err
		}
		return nil, ErrInvitationExpired.WithMetadata(map[string]any{
			"invitation_id": invitation.ID.String(),
		})
	}

	if invitation.Status != InvitationStatusPending {
		return nil, ErrInvitationNotPending.WithMetadata(map[string]any{
			"status": string(invitation.Status),
		})
	}

	if existing, err := m.members.store.GetMembership(ctx, invitation.AccountID, userID); err == nil && existing != nil {
		return nil, ErrAlreadyMember.WithMetadata(map[string]any{
			"account_id": invitation.AccountID.String(),
			"user_id":    userID.String(),
		})
	} else if err != nil && !IsNotFound(err) {
		return nil, internalError(err)
	}

	// The membership is created before the terminal transition is persisted:
	// a store failure here leaves the invitation pending and the accept
	// retryable, instead of terminally accepted with no membership.
	membership, err := m.members.Add(ctx, actor, invitation.AccountID, userID, invitation.Role)
	if err != nil {
		return nil, err
	}

	now := m.now()
	invitation.Status = InvitationStatusAccepted
	invitation.AcceptedAt = &now
	invitation.AcceptedBy = &userID

	if _, err := m.store.Update(ctx, invitation); err != nil {
		return nil, internalError(err)
	}

	m.recordAudit(ctx, AuditEvent{
		EventType: AuditEventInvitationAccepted,
		Actor:     actor,
		AccountID: invitation.AccountID.String(),
		Target:    invitation.Email,
		Metadata:  map[string]any{"role": string(invitation.Role)},
	})

	return membership, nil
}

// Cancel moves a pending invitation to cancelled. The actor must hold an
// owner or admin membership in the invitation's account.
func (m *InvitationManager) Cancel(ctx context.Context, actor ActorRef, invitationID uuid.UUID) (*Invitation, error) {
	invitation, err := m.getForMutation(ctx, actor, invitationID)
	if err != nil {
		return nil, err
	}

	cancelled, err := m.transition(ctx, invitation, InvitationStatusCancelled)
	if err != nil {
		return nil, err
	}

	m.recordAudit(ctx, AuditEvent{
		EventType: AuditEventInvitationCancelled,
		Actor:     actor,
		AccountID: invitation.AccountID.String(),
		Target:    invitation.Email,
	})

	return cancelled, nil
}

// Resend mints a new capability token and a fresh expiry for a pending
// invitation. The previous token no longer matches the stored value, so
// old links go dead without explicit revocation.
func (m *InvitationManager) Resend(ctx context.Context, actor ActorRef, invitationID uuid.UUID) (*Invitation, error) {
	invitation, err := m.getForMutation(ctx, actor, invitationID)
	if err != nil {
		return nil, err
	}

	if invitation.Status != InvitationStatusPending {
		return nil, ErrInvitationNotPending.WithMetadata(map[string]any{
			"status": string(invitation.Status),
		})
	}

	token, err := m.newToken()
	if err != nil {
		return nil, internalError(err)
	}

	invitation.Token = token
	invitation.ExpiresAt = m.now().Add(m.ttl)

	updated, err := m.store.Update(ctx, invitation)
	if err != nil {
		return nil, internalError(err)
	}

	m.recordAudit(ctx, AuditEvent{
		EventType: AuditEventInvitationResent,
		Actor:     actor,
		AccountID: invitation.AccountID.String(),
		Target:    invitation.Email,
	})

	return updated, nil
}

// FindPending lists the invitations of an account that are still pending
// and unexpired at the time of the call.
func (m *InvitationManager) FindPending(ctx context.Context, accountID uuid.UUID) ([]*Invitation, error) {
	invitations, err := m.store.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, internalError(err)
	}

	now := m.now()
	pending := make([]*Invitation, 0, len(invitations))
	for _, invitation := range invitations {
		if invitation.Status == InvitationStatusPending && !invitation.IsExpired(now) {
			pending = append(pending, invitation)
		}
	}

	return pending, nil
}

// PurgeAccount removes every invitation of an account. Part of the account
// deletion cascade.
func (m *InvitationManager) PurgeAccount(ctx context.Context, accountID uuid.UUID) error {
	if err := m.store.DeleteByAccount(ctx, accountID); err != nil {
		return internalError(err)
	}
	return nil
}

func (m *InvitationManager) getForMutation(ctx context.Context, actor ActorRef, invitationID uuid.UUID) (*Invitation, error) {
	invitation, err := m.store.GetByID(ctx, invitationID)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvitationNotFound
		}
		return nil, internalError(err)
	}

	actorID, err := uuid.Parse(actor.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "actor id is not a valid user id")
	}

	if err := m.requireAdministrative(ctx, invitation.AccountID, actorID); err != nil {
		return nil, err
	}

	return m.expireIfStale(ctx, invitation)
}

// expireIfStale lazily transitions pending → expired when the expiry has
// elapsed at the moment of the read.
func (m *InvitationManager) expireIfStale(ctx context.Context, invitation *Invitation) (*Invitation, error) {
	if invitation.Status != InvitationStatusPending || !invitation.IsExpired(m.now()) {
		return invitation, nil
	}
	return m.transition(ctx, invitation, InvitationStatusExpired)
}

func (m *InvitationManager) transition(ctx context.Context, invitation *Invitation, to InvitationStatus) (*Invitation, error) {
	if !invitation.Status.canTransition(to) {
		return nil, ErrInvitationNotPending.WithMetadata(map[string]any{
			"from": string(invitation.Status),
			"to":   string(to),
		})
	}

	invitation.Status = to

	updated, err := m.store.Update(ctx, invitation)
	if err != nil {
		return nil, internalError(err)
	}

	return updated, nil
}

// requireAdministrative checks the user holds an owner or admin membership
// in accountID.
func (m *InvitationManager) requireAdministrative(ctx context.Context, accountID, userID uuid.UUID) error {
	membership, err := m.members.store.GetMembership(ctx, accountID, userID)
	if err != nil {
		if IsNotFound(err) {
			return ErrNotMember
		}
		return internalError(err)
	}

	if !membership.Role.IsAdministrative() {
		return forbidden("owner or admin role required")
	}

	return nil
}

// ensureEmailNotMember resolves the email to a user id (when a matching
// user exists) and rejects the invitation if that user already holds a
// membership. Email and user id are distinct identifier spaces; this is
// the only place the invitation flow crosses between them.
func (m *InvitationManager) ensureEmailNotMember(ctx context.Context, accountID uuid.UUID, email string) error {
	if m.users == nil {
		return nil
	}

	userID, err := m.users.ResolveEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return internalError(err)
	}

	if _, err := m.members.store.GetMembership(ctx, accountID, userID); err == nil {
		return ErrAlreadyMember.WithMetadata(map[string]any{
			"account_id": accountID.String(),
			"email":      email,
		})
	} else if !IsNotFound(err) {
		return internalError(err)
	}

	return nil
}

func (m *InvitationManager) recordAudit(ctx context.Context, event AuditEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}

	sink := normalizeAuditSink(m.auditSink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("invitation audit sink error: %v", err)
	}
}

// generateInvitationToken returns a 64 character hex capability token.
func generateInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
