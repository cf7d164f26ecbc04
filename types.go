package access

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds token options consumed by NewTokenService.
type Config interface {
	GetAccessSigningKey() string
	GetRefreshSigningKey() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetIssuer() string
	GetAudience() []string
}

// MembershipStore is the persistence boundary for account memberships.
// Lookup misses surface as ErrMembershipNotFound; any other failure is a
// transient store error and must not be read as an authorization verdict.
type MembershipStore interface {
	GetMembers(ctx context.Context, accountID uuid.UUID) ([]*Membership, error)
	GetMembership(ctx context.Context, accountID, userID uuid.UUID) (*Membership, error)
	UpsertMembership(ctx context.Context, membership *Membership) (*Membership, error)
	DeleteMembership(ctx context.Context, accountID, userID uuid.UUID) error
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) error
}

// InvitationStore is the persistence boundary for invitations.
type InvitationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Invitation, error)
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	GetPending(ctx context.Context, accountID uuid.UUID, email string) (*Invitation, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Invitation, error)
	Create(ctx context.Context, invitation *Invitation) (*Invitation, error)
	Update(ctx context.Context, invitation *Invitation) (*Invitation, error)
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) error
}

// UserResolver maps an email address to a user identifier. Email and user id
// are distinct identifier spaces; every crossing between them goes through
// this interface.
type UserResolver interface {
	ResolveEmail(ctx context.Context, email string) (uuid.UUID, error)
}

// CredentialVerifier compares a candidate secret against a stored hash.
type CredentialVerifier interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCESS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCESS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCESS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCESS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
