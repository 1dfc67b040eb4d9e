package external

import "github.com/goliatone/go-errors"

const (
	TextCodeAssertionInvalid = "external_assertion_invalid"
	TextCodeEmailMissing     = "external_email_missing"
	TextCodeLinkNotFound     = "external_link_not_found"
	TextCodeLastAuthMethod   = "external_last_auth_method"
)

// ErrAssertionInvalid is returned when a provider assertion fails validation.
var ErrAssertionInvalid = errors.New("external assertion invalid", errors.CategoryAuth).
	WithTextCode(TextCodeAssertionInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrProviderEmailMissing is returned when the provider supplied no email and
// the assertion does not match an existing link.
var ErrProviderEmailMissing = errors.New("external provider supplied no email", errors.CategoryBadInput).
	WithTextCode(TextCodeEmailMissing).
	WithCode(errors.CodeBadRequest)

// ErrLinkNotFound is returned when an expected external link does not exist.
var ErrLinkNotFound = errors.New("external login link not found", errors.CategoryNotFound).
	WithTextCode(TextCodeLinkNotFound).
	WithCode(errors.CodeNotFound)

// ErrLastAuthMethod is returned when unlinking would leave a passwordless
// account with no way to sign in.
var ErrLastAuthMethod = errors.New("cannot unlink last authentication method", errors.CategoryValidation).
	WithTextCode(TextCodeLastAuthMethod).
	WithCode(errors.CodeBadRequest)
