package access_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-access"
	"github.com/google/uuid"
)

// testConfig implements access.Config
type testConfig struct {
	accessKey  string
	refreshKey string
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   []string
}

func newTestConfig() testConfig {
	return testConfig{
		accessKey:  "access-secret",
		refreshKey: "refresh-secret",
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
		issuer:     "test-issuer",
	}
}

func (c testConfig) GetAccessSigningKey() string       { return c.accessKey }
func (c testConfig) GetRefreshSigningKey() string      { return c.refreshKey }
func (c testConfig) GetAccessTokenTTL() time.Duration  { return c.accessTTL }
func (c testConfig) GetRefreshTokenTTL() time.Duration { return c.refreshTTL }
func (c testConfig) GetIssuer() string                 { return c.issuer }
func (c testConfig) GetAudience() []string             { return c.audience }

// recordingSink captures every audit event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []access.AuditEvent
}

func (s *recordingSink) Record(_ context.Context, event access.AuditEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Events() []access.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]access.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) EventTypes() []access.AuditEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]access.AuditEventType, len(s.events))
	for i, event := range s.events {
		types[i] = event.EventType
	}
	return types
}

var errStoreUnavailable = errors.New("store unavailable")

// failingMembershipStore simulates a transient persistence outage.
type failingMembershipStore struct{}

func (failingMembershipStore) GetMembers(context.Context, uuid.UUID) ([]*access.Membership, error) {
	return nil, errStoreUnavailable
}

func (failingMembershipStore) GetMembership(context.Context, uuid.UUID, uuid.UUID) (*access.Membership, error) {
	return nil, errStoreUnavailable
}

func (failingMembershipStore) UpsertMembership(context.Context, *access.Membership) (*access.Membership, error) {
	return nil, errStoreUnavailable
}

func (failingMembershipStore) DeleteMembership(context.Context, uuid.UUID, uuid.UUID) error {
	return errStoreUnavailable
}

func (failingMembershipStore) DeleteByAccount(context.Context, uuid.UUID) error {
	return errStoreUnavailable
}

// flakyMembershipStore fails the first failures upserts, then delegates.
type flakyMembershipStore struct {
	access.MembershipStore
	failures int
}

func (s *flakyMembershipStore) UpsertMembership(ctx context.Context, membership *access.Membership) (*access.Membership, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errStoreUnavailable
	}
	return s.MembershipStore.UpsertMembership(ctx, membership)
}

// seedMembership inserts a membership directly into the store.
func seedMembership(t interface{ Fatalf(string, ...any) }, store access.MembershipStore, accountID, userID uuid.UUID, role access.Role) {
	if _, err := store.UpsertMembership(context.Background(), &access.Membership{
		AccountID: accountID,
		UserID:    userID,
		Role:      role,
	}); err != nil {
		t.Fatalf("failed to seed membership: %v", err)
	}
}

func actorFor(userID uuid.UUID) access.ActorRef {
	return access.ActorRef{ID: userID.String(), Type: "user"}
}
