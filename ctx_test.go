package access_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-access"
)

func TestPrincipalContextRoundTrip(t *testing.T) {
	principal := access.Principal{
		UserID: uuid.New().String(),
		Email:  "user@example.com",
		Role:   access.RoleEditor,
	}

	ctx := access.WithPrincipal(context.Background(), principal)

	found, ok := access.PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, principal, found)
}

func TestPrincipalFromContextMissing(t *testing.T) {
	_, ok := access.PrincipalFromContext(context.Background())
	assert.False(t, ok)
}

func TestRouterPrincipal(t *testing.T) {
	principal := access.Principal{
		UserID: uuid.New().String(),
		Role:   access.RoleAdmin,
	}

	ctx := router.NewMockContext()
	ctx.LocalsMock["principal"] = principal

	found, ok := access.RouterPrincipal(ctx, "")
	require.True(t, ok)
	assert.Equal(t, principal, found)

	found, ok = access.RouterPrincipal(ctx, "principal")
	require.True(t, ok)
	assert.Equal(t, principal, found)
}

func TestRouterPrincipalMissingOrWrongType(t *testing.T) {
	ctx := router.NewMockContext()

	_, ok := access.RouterPrincipal(ctx, "principal")
	assert.False(t, ok)

	ctx.LocalsMock["principal"] = "not a principal"
	_, ok = access.RouterPrincipal(ctx, "principal")
	assert.False(t, ok)
}

func TestCanRequiresResolvedMembership(t *testing.T) {
	accountID := uuid.New().String()

	principal := access.Principal{
		UserID: uuid.New().String(),
		Role:   access.RoleViewer,
	}

	ctx := access.WithPrincipal(context.Background(), principal)
	assert.False(t, access.Can(ctx, access.PermAccountRead))

	scoped := access.WithPrincipal(context.Background(), principal.WithMembership(accountID, access.RoleViewer))
	assert.True(t, access.Can(scoped, access.PermAccountRead))
	assert.False(t, access.Can(scoped, access.PermAccountWrite))
}

func TestCanWithoutPrincipal(t *testing.T) {
	assert.False(t, access.Can(context.Background(), access.PermAccountRead))
}
