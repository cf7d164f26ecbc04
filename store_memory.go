package access

import (
	"context"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MemoryMembershipStore is the transient MembershipStore used by tests and
// the reference deployment. Safe for concurrent use.
type MemoryMembershipStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]map[uuid.UUID]*Membership
}

var _ MembershipStore = (*MemoryMembershipStore)(nil)

// NewMemoryMembershipStore returns an empty in-memory store.
func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{
		records: make(map[uuid.UUID]map[uuid.UUID]*Membership),
	}
}

// GetMembers implements MembershipStore.
func (s *MemoryMembershipStore) GetMembers(_ context.Context, accountID uuid.UUID) ([]*Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]*Membership, 0, len(s.records[accountID]))
	for _, membership := range s.records[accountID] {
		members = append(members, cloneMembership(membership))
	}
	return members, nil
}

// GetMembership implements MembershipStore.
func (s *MemoryMembershipStore) GetMembership(_ context.Context, accountID, userID uuid.UUID) (*Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	membership, ok := s.records[accountID][userID]
	if !ok {
		return nil, ErrMembershipNotFound.WithMetadata(map[string]any{
			"account_id": accountID.String(),
			"user_id":    userID.String(),
		})
	}
	return cloneMembership(membership), nil
}

// UpsertMembership implements MembershipStore.
func (s *MemoryMembershipStore) UpsertMembership(_ context.Context, membership *Membership) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := cloneMembership(membership)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if s.records[record.AccountID] == nil {
		s.records[record.AccountID] = make(map[uuid.UUID]*Membership)
	}
	if existing, ok := s.records[record.AccountID][record.UserID]; ok {
		record.ID = existing.ID
		if record.JoinedAt == nil {
			record.JoinedAt = existing.JoinedAt
		}
	}
	s.records[record.AccountID][record.UserID] = record

	return cloneMembership(record), nil
}

// DeleteMembership implements MembershipStore.
func (s *MemoryMembershipStore) DeleteMembership(_ context.Context, accountID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[accountID][userID]; !ok {
		return ErrMembershipNotFound.WithMetadata(map[string]any{
			"account_id": accountID.String(),
			"user_id":    userID.String(),
		})
	}
	delete(s.records[accountID], userID)
	return nil
}

// DeleteByAccount implements MembershipStore.
func (s *MemoryMembershipStore) DeleteByAccount(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	delete(s.records, accountID)
	s.mu.Unlock()
	return nil
}

func cloneMembership(m *Membership) *Membership {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// MemoryInvitationStore is the transient InvitationStore. Safe for
// concurrent use.
type MemoryInvitationStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Invitation
}

var _ InvitationStore = (*MemoryInvitationStore)(nil)

// NewMemoryInvitationStore returns an empty in-memory store.
func NewMemoryInvitationStore() *MemoryInvitationStore {
	return &MemoryInvitationStore{
		records: make(map[uuid.UUID]*Invitation),
	}
}

// GetByID implements InvitationStore.
func (s *MemoryInvitationStore) GetByID(_ context.Context, id uuid.UUID) (*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invitation, ok := s.records[id]
	if !ok {
		return nil, ErrInvitationNotFound.WithMetadata(map[string]any{"id": id.String()})
	}
	return cloneInvitation(invitation), nil
}

// GetByToken implements InvitationStore.
func (s *MemoryInvitationStore) GetByToken(_ context.Context, token string) (*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, invitation := range s.records {
		if invitation.Token == token {
			return cloneInvitation(invitation), nil
		}
	}
	return nil, ErrInvitationNotFound
}

// GetPending implements InvitationStore.
func (s *MemoryInvitationStore) GetPending(_ context.Context, accountID uuid.UUID, email string) (*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, invitation := range s.records {
		if invitation.AccountID == accountID &&
			strings.EqualFold(invitation.Email, email) &&
			invitation.Status == InvitationStatusPending {
			return cloneInvitation(invitation), nil
		}
	}
	return nil, ErrInvitationNotFound
}

// ListByAccount implements InvitationStore.
func (s *MemoryInvitationStore) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invitations := make([]*Invitation, 0)
	for _, invitation := range s.records {
		if invitation.AccountID == accountID {
			invitations = append(invitations, cloneInvitation(invitation))
		}
	}
	return invitations, nil
}

// Create implements InvitationStore.
func (s *MemoryInvitationStore) Create(_ context.Context, invitation *Invitation) (*Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := cloneInvitation(invitation)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	s.records[record.ID] = record

	return cloneInvitation(record), nil
}

// Update implements InvitationStore.
func (s *MemoryInvitationStore) Update(_ context.Context, invitation *Invitation) (*Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[invitation.ID]; !ok {
		return nil, ErrInvitationNotFound.WithMetadata(map[string]any{"id": invitation.ID.String()})
	}
	record := cloneInvitation(invitation)
	s.records[record.ID] = record

	return cloneInvitation(record), nil
}

// DeleteByAccount implements InvitationStore.
func (s *MemoryInvitationStore) DeleteByAccount(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, invitation := range s.records {
		if invitation.AccountID == accountID {
			delete(s.records, id)
		}
	}
	return nil
}

func cloneInvitation(i *Invitation) *Invitation {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

// MemoryUserResolver maps emails to user ids from a static table. Tests and
// the reference deployment use it in place of a real user directory.
type MemoryUserResolver struct {
	mu    sync.RWMutex
	users map[string]uuid.UUID
}

var _ UserResolver = (*MemoryUserResolver)(nil)

// NewMemoryUserResolver returns an empty resolver.
func NewMemoryUserResolver() *MemoryUserResolver {
	return &MemoryUserResolver{
		users: make(map[string]uuid.UUID),
	}
}

// Register associates an email with a user id.
func (r *MemoryUserResolver) Register(email string, userID uuid.UUID) {
	r.mu.Lock()
	r.users[strings.ToLower(email)] = userID
	r.mu.Unlock()
}

// ResolveEmail implements UserResolver.
func (r *MemoryUserResolver) ResolveEmail(_ context.Context, email string) (uuid.UUID, error) {
	r.mu.RLock()
	userID, ok := r.users[strings.ToLower(email)]
	r.mu.RUnlock()

	if !ok {
		return uuid.Nil, goerrors.New("user not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	}
	return userID, nil
}
