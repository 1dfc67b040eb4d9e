package identity

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeEmailNotConfirmed     = "EMAIL_NOT_CONFIRMED"
	TextCodeLockedOut             = "ACCOUNT_LOCKED_OUT"
	TextCodeInvalidToken          = "INVALID_VERIFICATION_TOKEN"
	TextCodeTokenExpired          = "VERIFICATION_TOKEN_EXPIRED"
	TextCodeDuplicateLogin        = "DUPLICATE_EXTERNAL_LOGIN"
	TextCodePartialUpdate         = "PARTIAL_ASSIGNMENT_UPDATE"
	TextCodeStoreUnavailable      = "STORE_UNAVAILABLE"
	TextCodeUnknownPolicy         = "UNKNOWN_POLICY"
	TextCodeUnrecognizedClaimType = "UNRECOGNIZED_CLAIM_TYPE"
	TextCodePasswordPolicy        = "PASSWORD_POLICY_VIOLATION"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCredentials is returned for a wrong password or an unknown email.
// The message never reveals which of the two it was.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotConfirmed is returned when sign-in requires a confirmed email.
var ErrEmailNotConfirmed = goerrors.New("email address has not been confirmed", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotConfirmed).
	WithCode(goerrors.CodeForbidden)

// ErrLockedOut is returned while an account is inside its lockout window.
var ErrLockedOut = goerrors.New("account is temporarily locked out", goerrors.CategoryAuth).
	WithTextCode(TextCodeLockedOut).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidToken covers forged signatures, purpose mismatches and security
// stamp rotations. Callers never learn which one tripped.
var ErrInvalidToken = goerrors.New("invalid verification token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for a well signed token past its purpose lifespan.
var ErrTokenExpired = goerrors.New("verification token has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrDuplicateExternalLogin is returned when a (provider, provider key) pair
// is already linked to another account.
var ErrDuplicateExternalLogin = goerrors.New("external login already linked", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateLogin).
	WithCode(goerrors.CodeConflict)

// ErrPartialUpdate signals that a replace-all assignment removed the previous
// set but failed to write the desired one. Effective permissions changed, so
// callers must surface this distinctly from validation failures.
var ErrPartialUpdate = goerrors.New("assignment replacement left the user with no grants", goerrors.CategoryConflict).
	WithTextCode(TextCodePartialUpdate).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString guards hash inputs
var ErrNoEmptyString = goerrors.New("value should not be an empty string", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the bcrypt mismatch error
var ErrMismatchedHashAndPassword = goerrors.New("mismatched hash and password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// WrapStoreError marks an infrastructure failure as retryable, distinct from
// every business outcome above.
func WrapStoreError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, msg).
		WithTextCode(TextCodeStoreUnavailable)
}

// IsStoreUnavailable reports whether err is an infrastructure failure that the
// caller may retry.
func IsStoreUnavailable(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == TextCodeStoreUnavailable
}

// IsRecordNotFound reports whether err means a record lookup came back empty.
func IsRecordNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || goerrors.IsNotFound(err)
}
