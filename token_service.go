package access

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTokenTTL is the lifetime of access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL is the lifetime of refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenService signs and verifies the two bearer token kinds.
type TokenService interface {
	Issue(claims PrincipalClaims, kind TokenKind) (string, error)
	Verify(token string, kind TokenKind) (Principal, error)
	IssuePair(claims PrincipalClaims) (TokenPair, error)
	Refresh(refreshToken string) (TokenPair, error)
	Revoke(ctx context.Context, token string) error
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	registry   RevocationRegistry
	auditSink  AuditSink
	logger     Logger
	now        func() time.Time
}

var _ TokenService = (*TokenServiceImpl)(nil)

// TokenOption customizes TokenService construction.
type TokenOption func(*TokenServiceImpl)

// WithTokenLogger overrides the default logger.
func WithTokenLogger(logger Logger) TokenOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// WithRevocationRegistry injects the registry consulted on every Verify.
func WithRevocationRegistry(registry RevocationRegistry) TokenOption {
	return func(ts *TokenServiceImpl) {
		ts.registry = registry
	}
}

// WithTokenAuditSink sets the AuditSink notified when tokens are revoked.
func WithTokenAuditSink(sink AuditSink) TokenOption {
	return func(ts *TokenServiceImpl) {
		ts.auditSink = normalizeAuditSink(sink)
	}
}

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// NewTokenService creates a new TokenService instance from cfg.
func NewTokenService(cfg Config, opts ...TokenOption) TokenService {
	ts := &TokenServiceImpl{
		accessKey:  []byte(cfg.GetAccessSigningKey()),
		refreshKey: []byte(cfg.GetRefreshSigningKey()),
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		auditSink:  noopAuditSink{},
		logger:     defLogger{},
		now:        time.Now,
	}

	if ts.accessTTL <= 0 {
		ts.accessTTL = DefaultAccessTokenTTL
	}
	if ts.refreshTTL <= 0 {
		ts.refreshTTL = DefaultRefreshTokenTTL
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Issue signs claims with the kind-specific secret, embedding a fresh
// issued-at, a unique token id and the kind's expiry. The token id keeps two
// same-second issues of identical claims distinct, so each signed string is
// independently revocable.
func (ts *TokenServiceImpl) Issue(claims PrincipalClaims, kind TokenKind) (string, error) {
	if !kind.IsValid() {
		return "", goerrors.New(fmt.Sprintf("unknown token kind: %q", kind), goerrors.CategoryBadInput)
	}
	if claims.UserID == "" {
		return "", goerrors.New("token subject is required", goerrors.CategoryBadInput)
	}
	if claims.Role != "" && !claims.Role.IsValid() {
		return "", ErrInvalidRole.WithMetadata(map[string]any{"role": claims.Role})
	}

	now := ts.now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	payload := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   claims.UserID,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttlFor(kind))),
		},
		UID:       claims.UserID,
		Email:     claims.Email,
		AccountID: claims.AccountID,
		UserRole:  string(claims.Role),
		Kind:      string(kind),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	signed, err := token.SignedString(ts.keyFor(kind))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Verify parses and validates a token string of the given kind, returning
// the Principal it asserts. The revocation registry is consulted before the
// signature is trusted: a revoked but cryptographically valid token must
// never authenticate.
func (ts *TokenServiceImpl) Verify(tokenString string, kind TokenKind) (Principal, error) {
	if !kind.IsValid() {
		return Principal{}, goerrors.New(fmt.Sprintf("unknown token kind: %q", kind), goerrors.CategoryBadInput)
	}

	if ts.registry != nil && ts.registry.Contains(tokenString) {
		return Principal{}, ErrTokenRevoked
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService verify encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.keyFor(kind), nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, goerrors.Wrap(err, ErrTokenInvalid.Category, ErrTokenInvalid.Message).
			WithTextCode(ErrTokenInvalid.TextCode).
			WithCode(ErrTokenInvalid.Code)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService verify could not decode claims")
		return Principal{}, ErrTokenInvalid
	}

	// Never fall back between kinds: an access token presented as a refresh
	// token (or vice versa) fails even when the secrets happen to match.
	if claims.Kind != string(kind) {
		return Principal{}, ErrTokenInvalid.WithMetadata(map[string]any{
			"expected_kind": string(kind),
		})
	}

	// A structurally valid token with an empty subject never passes through
	// as an empty principal.
	if claims.UserID() == "" {
		return Principal{}, ErrTokenInvalid.WithMetadata(map[string]any{
			"reason": "missing subject claim",
		})
	}

	return principalFromClaims(claims), nil
}

// IssuePair mints an access/refresh pair carrying the same identity claims.
func (ts *TokenServiceImpl) IssuePair(claims PrincipalClaims) (TokenPair, error) {
	accessToken, err := ts.Issue(claims, TokenKindAccess)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := ts.Issue(claims, TokenKindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh verifies the presented refresh token and mints a new pair.
// Refreshing always produces new tokens rather than extending the old ones.
func (ts *TokenServiceImpl) Refresh(refreshToken string) (TokenPair, error) {
	principal, err := ts.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	return ts.IssuePair(PrincipalClaims{
		UserID:    principal.UserID,
		Email:     principal.Email,
		AccountID: principal.AccountID,
		Role:      principal.Role,
	})
}

// Revoke registers the token in the revocation registry and emits an audit
// event. The token is not parsed: revocation is keyed by the literal string.
func (ts *TokenServiceImpl) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return goerrors.New("token is required", goerrors.CategoryBadInput)
	}
	if ts.registry == nil {
		return goerrors.New("no revocation registry configured", goerrors.CategoryOperation)
	}

	ts.registry.Revoke(token)

	sink := normalizeAuditSink(ts.auditSink)
	event := AuditEvent{
		EventType:  AuditEventTokenRevoked,
		Actor:      ActorRef{Type: "system"},
		OccurredAt: ts.now(),
	}
	if err := sink.Record(ctx, event); err != nil {
		ts.logger.Warn("token revoke audit sink error: %v", err)
	}

	return nil
}

func (ts *TokenServiceImpl) keyFor(kind TokenKind) []byte {
	if kind == TokenKindRefresh {
		return ts.refreshKey
	}
	return ts.accessKey
}

func (ts *TokenServiceImpl) ttlFor(kind TokenKind) time.Duration {
	if kind == TokenKindRefresh {
		return ts.refreshTTL
	}
	return ts.accessTTL
}
