package access

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients alongside the HTTP status.
const (
	TextCodeTokenInvalid         = "TOKEN_INVALID"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeTokenRevoked         = "TOKEN_REVOKED"
	TextCodeUnauthenticated      = "UNAUTHENTICATED"
	TextCodeForbidden            = "FORBIDDEN"
	TextCodeAccountIDRequired    = "ACCOUNT_ID_REQUIRED"
	TextCodeNotMember            = "NOT_A_MEMBER"
	TextCodeInvitationNotFound   = "INVITATION_NOT_FOUND"
	TextCodeInvitationNotPending = "INVITATION_NOT_PENDING"
	TextCodeInvitationExpired    = "INVITATION_EXPIRED"
	TextCodeAlreadyMember        = "ALREADY_MEMBER"
	TextCodeDuplicatePending     = "DUPLICATE_PENDING_INVITATION"
	TextCodeInvalidRole          = "INVALID_ROLE"
	TextCodeSoleOwnerViolation   = "SOLE_OWNER_VIOLATION"
	TextCodeMembershipNotFound   = "MEMBERSHIP_NOT_FOUND"
	TextCodeInternal             = "INTERNAL_ERROR"
)

// ErrTokenInvalid is returned for malformed tokens, bad signatures, a
// missing subject claim, or a token presented under the wrong kind.
var ErrTokenInvalid = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when the token's expiry claim has elapsed.
var ErrTokenExpired = goerrors.New("authentication token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRevoked is returned when the token string is present in the
// revocation registry, regardless of signature or expiry validity.
var ErrTokenRevoked = goerrors.New("authentication token revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is the terminal rejection of the authenticate stage.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is the terminal rejection of the enforcement stage. Guards
// clone it and name the unmet requirement in the message.
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrAccountIDRequired is returned when an account-scoped guard cannot find
// an account identifier in the call's addressing. Checked before membership
// resolution, so it is reported ahead of any Forbidden outcome.
var ErrAccountIDRequired = goerrors.New("account id required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAccountIDRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrNotMember is returned when the authenticated principal holds no
// membership in the addressed account.
var ErrNotMember = goerrors.New("not a member of this account", goerrors.CategoryAuthz).
	WithTextCode(TextCodeNotMember).
	WithCode(goerrors.CodeForbidden)

// ErrMembershipNotFound is the membership store's lookup miss.
var ErrMembershipNotFound = goerrors.New("membership not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeMembershipNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvitationNotFound is returned when no invitation matches the token.
var ErrInvitationNotFound = goerrors.New("invitation not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeInvitationNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvitationNotPending is returned for any lifecycle operation attempted
// on an invitation that already reached a terminal state.
var ErrInvitationNotPending = goerrors.New("invitation is not pending", goerrors.CategoryConflict).
	WithTextCode(TextCodeInvitationNotPending).
	WithCode(goerrors.CodeConflict)

// ErrInvitationExpired is returned when acceptance is attempted after the
// invitation's expiry has elapsed.
var ErrInvitationExpired = goerrors.New("invitation has expired", goerrors.CategoryConflict).
	WithTextCode(TextCodeInvitationExpired).
	WithCode(goerrors.CodeConflict)

// ErrAlreadyMember is returned when the invited email already maps to an
// existing membership of the target account.
var ErrAlreadyMember = goerrors.New("user is already a member of this account", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyMember).
	WithCode(goerrors.CodeConflict)

// ErrDuplicatePending is returned when a pending invitation already exists
// for the (account, email) pair.
var ErrDuplicatePending = goerrors.New("a pending invitation already exists for this email", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicatePending).
	WithCode(goerrors.CodeConflict)

// ErrInvalidRole is returned when a role is outside the closed enumeration.
var ErrInvalidRole = goerrors.New("role is not a valid account role", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(goerrors.CodeBadRequest)

// ErrSoleOwnerViolation is returned when a mutation would leave the account
// without an owner.
var ErrSoleOwnerViolation = goerrors.New("account must retain at least one owner", goerrors.CategoryConflict).
	WithTextCode(TextCodeSoleOwnerViolation).
	WithCode(goerrors.CodeConflict)

// ErrInternal wraps transient collaborator failures. Never conflated with an
// authorization verdict: "could not determine membership" is not "not a
// member".
var ErrInternal = goerrors.New("internal error", goerrors.CategoryInternal).
	WithTextCode(TextCodeInternal).
	WithCode(goerrors.CodeInternal)

// forbidden clones ErrForbidden with a message naming the unmet requirement.
func forbidden(message string) *goerrors.Error {
	clone := ErrForbidden.Clone()
	if clone == nil {
		return ErrForbidden
	}
	clone.Message = message
	clone.Source = ErrForbidden
	return clone
}

// internalError wraps a collaborator failure preserving the source error.
func internalError(err error) *goerrors.Error {
	return goerrors.Wrap(err, ErrInternal.Category, ErrInternal.Message).
		WithTextCode(ErrInternal.TextCode).
		WithCode(ErrInternal.Code)
}

// IsNotFound reports whether err is a lookup miss rather than a failure.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}
