package access

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal resolved for this request.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalCtxKey).(Principal)
	return principal, ok
}

// RouterPrincipal extracts the Principal from the router context locals.
func RouterPrincipal(ctx router.Context, key string) (Principal, bool) {
	if key == "" {
		key = "principal"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return Principal{}, false
	}
	principal, ok := raw.(Principal)
	return principal, ok
}

// Can is a convenience check against the principal stored in the standard
// context. Only meaningful after account membership has been resolved.
func Can(ctx context.Context, permission Permission) bool {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return principal.Can(permission)
}
