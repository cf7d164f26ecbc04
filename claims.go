package access

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates the two bearer token families. Each kind is
// signed with its own secret and a token never verifies under the other
// kind's secret or kind claim.
type TokenKind string

const (
	// TokenKindAccess is the short-lived token presented on every call.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is the long-lived token used only to mint new pairs.
	TokenKindRefresh TokenKind = "refresh"
)

// IsValid checks the kind is one of the two supported families.
func (k TokenKind) IsValid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// Claims is the JWT payload for both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	UID       string `json:"uid,omitempty"`
	Email     string `json:"email,omitempty"`
	AccountID string `json:"acct,omitempty"`
	UserRole  string `json:"role,omitempty"`
	Kind      string `json:"knd,omitempty"`
}

// UserID returns the user ID, falling back to the subject claim.
func (c *Claims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// PrincipalClaims is the identity subset callers supply when issuing
// tokens. Temporal and kind claims are owned by the TokenService.
type PrincipalClaims struct {
	UserID    string
	Email     string
	AccountID string
	Role      Role
}

// TokenPair bundles a freshly minted access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Principal is the authenticated identity derived from a verified token.
// It is immutable; membership resolution derives a new Principal via
// WithMembership rather than mutating in place. The Role and Permissions
// fields are only trustworthy after that derivation: a token's embedded
// role proves nothing about the account being addressed.
type Principal struct {
	UserID      string
	Email       string
	AccountID   string
	Role        Role
	Permissions []Permission
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// WithMembership derives a new Principal scoped to accountID carrying the
// role resolved from the membership store, with the role's permission set
// attached from the catalog.
func (p Principal) WithMembership(accountID string, role Role) Principal {
	augmented := p
	augmented.AccountID = accountID
	augmented.Role = role
	augmented.Permissions = PermissionsFor(role)
	return augmented
}

// Can checks the principal's resolved permission set.
func (p Principal) Can(permission Permission) bool {
	for _, perm := range p.Permissions {
		if perm == permission {
			return true
		}
	}
	return false
}

// CanAll checks the principal holds every listed permission.
func (p Principal) CanAll(permissions ...Permission) bool {
	for _, perm := range permissions {
		if !p.Can(perm) {
			return false
		}
	}
	return true
}

// CanAny checks the principal holds at least one listed permission.
func (p Principal) CanAny(permissions ...Permission) bool {
	for _, perm := range permissions {
		if p.Can(perm) {
			return true
		}
	}
	return false
}

// HasRole checks the resolved role.
func (p Principal) HasRole(role Role) bool {
	return p.Role == role
}

// principalFromClaims builds the Principal a verified token asserts.
func principalFromClaims(claims *Claims) Principal {
	principal := Principal{
		UserID:    claims.UserID(),
		Email:     claims.Email,
		AccountID: claims.AccountID,
	}

	if role, ok := ParseRole(claims.UserRole); ok {
		principal.Role = role
	}

	if claims.RegisteredClaims.IssuedAt != nil {
		principal.IssuedAt = claims.RegisteredClaims.IssuedAt.Time
	}
	if claims.RegisteredClaims.ExpiresAt != nil {
		principal.ExpiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	return principal
}
