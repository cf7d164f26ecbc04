// Package guard exposes each stage of the access control chain as a
// composable router middleware: authenticate, resolve account membership,
// enforce role/permission/ownership. Every stage short-circuits to a
// terminal rejection; no stage is re-entrant.
package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-access"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

var defaultTokenLookup = "header:" + router.HeaderAuthorization

// TokenVerifier validates bearer tokens. Satisfied by access.TokenService.
type TokenVerifier interface {
	Verify(token string, kind access.TokenKind) (access.Principal, error)
}

// MembershipResolver re-derives the caller's role for an account at
// enforcement time. Satisfied by access.MembershipManager. A token's
// embedded role is never trusted for authorization.
type MembershipResolver interface {
	Resolve(ctx context.Context, accountID, userID uuid.UUID) (*access.Membership, error)
}

type Config struct {
	// Verifier is required for every guard.
	Verifier TokenVerifier
	// Memberships is required for account-scoped guards.
	Memberships MembershipResolver
	// ContextKey is the locals key holding the resolved Principal.
	ContextKey string
	// TokenLookup configures extraction, e.g. "header:Authorization,cookie:jwt".
	TokenLookup string
	AuthScheme  string
	// AccountParam is the route param carrying the account id.
	AccountParam string
	ErrorHandler router.ErrorHandler
	Logger       access.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.ContextKey == "" {
		cfg.ContextKey = "principal"
	}
	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	if cfg.AccountParam == "" {
		cfg.AccountParam = "accountId"
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler()
	}
	if cfg.Verifier == nil {
		panic("ACCESS: guard configuration: Verifier is required.")
	}
	return cfg
}

// Authenticate verifies the bearer credential and stores the resulting
// Principal. Any failure terminates the call with 401.
func Authenticate(config Config) router.MiddlewareFunc {
	cfg := config.withDefaults()
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal, err := authenticate(ctx, cfg)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			storePrincipal(ctx, cfg, principal)
			return ctx.Next()
		}
	}
}

// OptionalAuthenticate behaves like Authenticate but treats any failure as
// "no principal" and proceeds, for endpoints that behave differently with
// and without a caller.
func OptionalAuthenticate(config Config) router.MiddlewareFunc {
	cfg := config.withDefaults()
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal, err := authenticate(ctx, cfg)
			if err != nil {
				cfg.Logger.Debug("optional auth failed, proceeding without principal: %v", err)
				return ctx.Next()
			}

			storePrincipal(ctx, cfg, principal)
			return ctx.Next()
		}
	}
}

// RequireAccount resolves the caller's membership in the addressed account
// and augments the stored Principal with the membership's role and
// permission set.
func RequireAccount(config Config) router.MiddlewareFunc {
	cfg := config.withDefaults()
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if _, err := ensureAccountPrincipal(ctx, cfg); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}
			return ctx.Next()
		}
	}
}

// RequireRole admits only callers whose resolved role equals role.
func RequireRole(config Config, role access.Role) router.MiddlewareFunc {
	return enforce(config, func(p access.Principal) error {
		if p.Role != role {
			return forbidden(fmt.Sprintf("role %q required", role))
		}
		return nil
	})
}

// RequireAnyRole admits callers whose resolved role is any of roles.
func RequireAnyRole(config Config, roles ...access.Role) router.MiddlewareFunc {
	return enforce(config, func(p access.Principal) error {
		for _, role := range roles {
			if p.Role == role {
				return nil
			}
		}
		return forbidden(fmt.Sprintf("one of roles %s required", roleList(roles)))
	})
}

// RequirePermission admits callers whose resolved permission set contains
// permission.
func RequirePermission(config Config, permission access.Permission) router.MiddlewareFunc {
	return enforce(config, func(p access.Principal) error {
		if !p.Can(permission) {
			return forbidden(fmt.Sprintf("permission %q required", permission))
		}
		return nil
	})
}

// RequireAnyPermission admits callers holding at least one of permissions.
func RequireAnyPermission(config Config, permissions ...access.Permission) router.MiddlewareFunc {
	return enforce(config, func(p access.Principal) error {
		if !p.CanAny(permissions...) {
			return forbidden(fmt.Sprintf("one of permissions %s required", permissionList(permissions)))
		}
		return nil
	})
}

// RequireAllPermissions admits callers holding every listed permission.
func RequireAllPermissions(config Config, permissions ...access.Permission) router.MiddlewareFunc {
	return enforce(config, func(p access.Principal) error {
		if !p.CanAll(permissions...) {
			return forbidden(fmt.Sprintf("all of permissions %s required", permissionList(permissions)))
		}
		return nil
	})
}

// RequireOwner admits only account owners.
func RequireOwner(config Config) router.MiddlewareFunc {
	return enforce(config, func(p access.Principal) error {
		if p.Role != access.RoleOwner {
			return forbidden("owner role required")
		}
		return nil
	})
}

// RequireOwnerOrAdmin admits account owners and admins.
func RequireOwnerOrAdmin(config Config) router.MiddlewareFunc {
	return enforce(config, func(p access.Principal) error {
		if !p.Role.IsAdministrative() {
			return forbidden("owner or admin role required")
		}
		return nil
	})
}

// enforce builds an account-scoped predicate guard. The account principal
// is resolved first (BadRequest for missing account id, Forbidden for
// non-members, Internal for store failures), then the predicate runs.
func enforce(config Config, predicate func(access.Principal) error) router.MiddlewareFunc {
	cfg := config.withDefaults()
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal, err := ensureAccountPrincipal(ctx, cfg)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := predicate(principal); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return ctx.Next()
		}
	}
}

func authenticate(ctx router.Context, cfg Config) (access.Principal, error) {
	raw, err := extractRawToken(ctx, cfg)
	if err != nil {
		return access.Principal{}, access.ErrUnauthenticated
	}

	principal, err := cfg.Verifier.Verify(raw, access.TokenKindAccess)
	if err != nil {
		return access.Principal{}, err
	}

	return principal, nil
}

// ensureAccountPrincipal returns the Principal augmented for the addressed
// account, resolving the membership when a prior stage has not already done
// so. The account id check runs before any membership lookup so a missing
// id reports BadRequest even when the caller would also be forbidden.
func ensureAccountPrincipal(ctx router.Context, cfg Config) (access.Principal, error) {
	principal, ok := access.RouterPrincipal(ctx, cfg.ContextKey)
	if !ok {
		return access.Principal{}, access.ErrUnauthenticated
	}

	rawAccountID := ctx.Param(cfg.AccountParam)
	if rawAccountID == "" {
		return access.Principal{}, access.ErrAccountIDRequired
	}

	if principal.Permissions != nil && principal.AccountID == rawAccountID {
		return principal, nil
	}

	if cfg.Memberships == nil {
		panic("ACCESS: guard configuration: Memberships is required for account-scoped guards.")
	}

	accountID, err := uuid.Parse(rawAccountID)
	if err != nil {
		return access.Principal{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "account id is not valid").
			WithCode(goerrors.CodeBadRequest)
	}

	userID, err := uuid.Parse(principal.UserID)
	if err != nil {
		return access.Principal{}, access.ErrUnauthenticated
	}

	membership, err := cfg.Memberships.Resolve(ctx.Context(), accountID, userID)
	if err != nil {
		if access.IsNotFound(err) {
			return access.Principal{}, access.ErrNotMember
		}
		// A membership lookup failure is a transient store error, never an
		// authorization verdict.
		return access.Principal{}, err
	}

	augmented := principal.WithMembership(rawAccountID, membership.Role)
	storePrincipal(ctx, cfg, augmented)

	return augmented, nil
}

func storePrincipal(ctx router.Context, cfg Config, principal access.Principal) {
	ctx.Locals(cfg.ContextKey, principal)
	ctx.SetContext(access.WithPrincipal(ctx.Context(), principal))
}

func defaultErrorHandler() router.ErrorHandler {
	return func(ctx router.Context, err error) error {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected error").
				WithCode(goerrors.CodeInternal)
		}

		status := richErr.Code
		if status == 0 {
			status = router.StatusInternalServerError
		}

		return ctx.JSON(status, map[string]any{
			"error": richErr.Message,
			"code":  richErr.TextCode,
		})
	}
}

func forbidden(message string) *goerrors.Error {
	clone := access.ErrForbidden.Clone()
	if clone == nil {
		return access.ErrForbidden
	}
	clone.Message = message
	clone.Source = access.ErrForbidden
	return clone
}

func roleList(roles []access.Role) string {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return "[" + strings.Join(names, ", ") + "]"
}

func permissionList(permissions []access.Permission) string {
	names := make([]string, len(permissions))
	for i, permission := range permissions {
		names[i] = string(permission)
	}
	return "[" + strings.Join(names, ", ") + "]"
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
