package access_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-access"
)

func TestTokenServiceIssueAndVerifyRoundTrip(t *testing.T) {
	service := access.NewTokenService(newTestConfig())

	claims := access.PrincipalClaims{
		UserID:    "user-123",
		Email:     "user@example.com",
		AccountID: "acct-9",
		Role:      access.RoleEditor,
	}

	token, err := service.Issue(claims, access.TokenKindAccess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	principal, err := service.Verify(token, access.TokenKindAccess)
	require.NoError(t, err)

	assert.Equal(t, "user-123", principal.UserID)
	assert.Equal(t, "user@example.com", principal.Email)
	assert.Equal(t, "acct-9", principal.AccountID)
	assert.Equal(t, access.RoleEditor, principal.Role)
	assert.False(t, principal.IssuedAt.IsZero())
	assert.True(t, principal.ExpiresAt.After(principal.IssuedAt))
	// membership has not been resolved yet
	assert.Nil(t, principal.Permissions)
}

func TestTokenServiceRejectsWrongKind(t *testing.T) {
	service := access.NewTokenService(newTestConfig())

	accessToken, err := service.Issue(access.PrincipalClaims{UserID: "user-1"}, access.TokenKindAccess)
	require.NoError(t, err)

	refreshToken, err := service.Issue(access.PrincipalClaims{UserID: "user-1"}, access.TokenKindRefresh)
	require.NoError(t, err)

	_, err = service.Verify(accessToken, access.TokenKindRefresh)
	assertTextCode(t, err, access.TextCodeTokenInvalid)

	_, err = service.Verify(refreshToken, access.TokenKindAccess)
	assertTextCode(t, err, access.TextCodeTokenInvalid)
}

func TestTokenServiceRejectsSameSecretKindSwap(t *testing.T) {
	cfg := newTestConfig()
	cfg.refreshKey = cfg.accessKey

	service := access.NewTokenService(cfg)

	accessToken, err := service.Issue(access.PrincipalClaims{UserID: "user-1"}, access.TokenKindAccess)
	require.NoError(t, err)

	// signature verifies under the shared secret, the kind claim still rejects
	_, err = service.Verify(accessToken, access.TokenKindRefresh)
	assertTextCode(t, err, access.TextCodeTokenInvalid)
}

func TestTokenServiceExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)

	issuing := access.NewTokenService(newTestConfig(), access.WithTokenClock(func() time.Time {
		return issuedAt
	}))

	token, err := issuing.Issue(access.PrincipalClaims{UserID: "user-1"}, access.TokenKindAccess)
	require.NoError(t, err)

	verifying := access.NewTokenService(newTestConfig())

	_, err = verifying.Verify(token, access.TokenKindAccess)
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrTokenExpired)
}

func TestTokenServiceTamperedTokenFailsVerification(t *testing.T) {
	service := access.NewTokenService(newTestConfig())

	token, err := service.Issue(access.PrincipalClaims{UserID: "user-1"}, access.TokenKindAccess)
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"

	_, err = service.Verify(tampered, access.TokenKindAccess)
	assertTextCode(t, err, access.TextCodeTokenInvalid)
}

func TestTokenServiceRejectsEmptySubject(t *testing.T) {
	service := access.NewTokenService(newTestConfig())

	_, err := service.Issue(access.PrincipalClaims{}, access.TokenKindAccess)
	require.Error(t, err)
}

func TestTokenServiceRevokedTokenFailsBeforeExpiry(t *testing.T) {
	registry := access.NewMemoryRevocationRegistry()
	sink := &recordingSink{}

	service := access.NewTokenService(newTestConfig(),
		access.WithRevocationRegistry(registry),
		access.WithTokenAuditSink(sink),
	)

	token, err := service.Issue(access.PrincipalClaims{UserID: "user-1"}, access.TokenKindAccess)
	require.NoError(t, err)

	_, err = service.Verify(token, access.TokenKindAccess)
	require.NoError(t, err)

	require.NoError(t, service.Revoke(context.Background(), token))

	_, err = service.Verify(token, access.TokenKindAccess)
	assert.ErrorIs(t, err, access.ErrTokenRevoked)

	require.Len(t, sink.Events(), 1)
	assert.Equal(t, access.AuditEventTokenRevoked, sink.Events()[0].EventType)
}

func TestTokenServiceRevocationIsPerTokenString(t *testing.T) {
	registry := access.NewMemoryRevocationRegistry()

	clock := time.Now()
	service := access.NewTokenService(newTestConfig(),
		access.WithRevocationRegistry(registry),
		access.WithTokenClock(func() time.Time { return clock }),
	)

	first, err := service.Issue(access.PrincipalClaims{UserID: "user-1"}, access.TokenKindAccess)
	require.NoError(t, err)

	clock = clock.Add(time.Second)
	second, err := service.Issue(access.PrincipalClaims{UserID: "user-1"}, access.TokenKindAccess)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.NoError(t, service.Revoke(context.Background(), first))

	_, err = service.Verify(first, access.TokenKindAccess)
	assert.ErrorIs(t, err, access.ErrTokenRevoked)

	_, err = service.Verify(second, access.TokenKindAccess)
	assert.NoError(t, err)
}

func TestTokenServiceSameSecondIssuesAreDistinct(t *testing.T) {
	registry := access.NewMemoryRevocationRegistry()

	fixed := time.Now()
	service := access.NewTokenService(newTestConfig(),
		access.WithRevocationRegistry(registry),
		access.WithTokenClock(func() time.Time { return fixed }),
	)

	claims := access.PrincipalClaims{UserID: "user-1"}

	first, err := service.Issue(claims, access.TokenKindAccess)
	require.NoError(t, err)

	// identical claims, same clock second: the embedded token id still keeps
	// the signed strings apart
	second, err := service.Issue(claims, access.TokenKindAccess)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.NoError(t, service.Revoke(context.Background(), first))

	_, err = service.Verify(first, access.TokenKindAccess)
	assert.ErrorIs(t, err, access.ErrTokenRevoked)

	_, err = service.Verify(second, access.TokenKindAccess)
	assert.NoError(t, err)
}

func TestTokenServiceRefreshAfterRevokeSameSecond(t *testing.T) {
	registry := access.NewMemoryRevocationRegistry()

	fixed := time.Now()
	service := access.NewTokenService(newTestConfig(),
		access.WithRevocationRegistry(registry),
		access.WithTokenClock(func() time.Time { return fixed }),
	)

	pair, err := service.IssuePair(access.PrincipalClaims{UserID: "user-1"})
	require.NoError(t, err)

	require.NoError(t, service.Revoke(context.Background(), pair.AccessToken))

	refreshed, err := service.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, refreshed.AccessToken)

	_, err = service.Verify(refreshed.AccessToken, access.TokenKindAccess)
	require.NoError(t, err)
}

func TestTokenServiceIssuePair(t *testing.T) {
	service := access.NewTokenService(newTestConfig())

	pair, err := service.IssuePair(access.PrincipalClaims{
		UserID: "user-1",
		Email:  "user@example.com",
		Role:   access.RoleViewer,
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	accessPrincipal, err := service.Verify(pair.AccessToken, access.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", accessPrincipal.UserID)

	refreshPrincipal, err := service.Verify(pair.RefreshToken, access.TokenKindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refreshPrincipal.UserID)
}

func TestTokenServiceRefreshMintsNewPair(t *testing.T) {
	clock := time.Now()
	service := access.NewTokenService(newTestConfig(),
		access.WithTokenClock(func() time.Time { return clock }),
	)

	pair, err := service.IssuePair(access.PrincipalClaims{
		UserID: "user-1",
		Email:  "user@example.com",
		Role:   access.RoleAdmin,
	})
	require.NoError(t, err)

	clock = clock.Add(time.Minute)

	refreshed, err := service.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, refreshed.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, refreshed.RefreshToken)

	principal, err := service.Verify(refreshed.AccessToken, access.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, access.RoleAdmin, principal.Role)
}

func TestTokenServiceRefreshRejectsAccessToken(t *testing.T) {
	service := access.NewTokenService(newTestConfig())

	pair, err := service.IssuePair(access.PrincipalClaims{UserID: "user-1"})
	require.NoError(t, err)

	_, err = service.Refresh(pair.AccessToken)
	assertTextCode(t, err, access.TextCodeTokenInvalid)
}

func TestTokenServiceRevokeRequiresRegistry(t *testing.T) {
	service := access.NewTokenService(newTestConfig())

	token, err := service.Issue(access.PrincipalClaims{UserID: "user-1"}, access.TokenKindAccess)
	require.NoError(t, err)

	err = service.Revoke(context.Background(), token)
	require.Error(t, err)
}

func assertTextCode(t *testing.T, err error, textCode string) {
	t.Helper()
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr), "expected a structured error, got: %v", err)
	assert.Equal(t, textCode, richErr.TextCode)
}
