package identity

import (
	"context"
	"strings"
)

// SignInStatus is the admission decision for a credential sign in attempt.
type SignInStatus string

const (
	SignInSuccess            SignInStatus = "success"
	SignInInvalidCredentials SignInStatus = "invalid_credentials"
	SignInEmailNotConfirmed  SignInStatus = "email_not_confirmed"
	SignInLockedOut          SignInStatus = "locked_out"
)

// SignInInput carries one credential attempt.
type SignInInput struct {
	Email    string
	Password string
	// Remember extends the session token lifespan.
	Remember bool
}

// SignInResult is the outcome of an attempt. SessionToken and Principal are
// set only on success.
type SignInResult struct {
	Status       SignInStatus
	SessionToken string
	Principal    *Principal
	User         *User
}

func (r SignInResult) Succeeded() bool {
	return r.Status == SignInSuccess
}

// SignInCoordinator admits or rejects credential sign ins. An unknown email
// and a wrong password produce the same result, so callers cannot probe which
// addresses have accounts. The unconfirmed email status is only ever revealed
// after the password verified.
type SignInCoordinator struct {
	repo                  RepositoryManager
	guard                 *LockoutGuard
	resolver              *PrincipalResolver
	mint                  *SessionMint
	auth                  PasswordAuthenticator
	requireConfirmedEmail bool
	logger                Logger
	activitySink          ActivitySink
}

type SignInOption func(*SignInCoordinator)

func WithSignInAuthenticator(auth PasswordAuthenticator) SignInOption {
	return func(c *SignInCoordinator) {
		if auth != nil {
			c.auth = auth
		}
	}
}

func WithSignInConfirmedEmailRequired(required bool) SignInOption {
	return func(c *SignInCoordinator) {
		c.requireConfirmedEmail = required
	}
}

func WithSignInLogger(l Logger) SignInOption {
	return func(c *SignInCoordinator) {
		c.logger = normalizeLogger(l)
	}
}

func WithSignInActivitySink(sink ActivitySink) SignInOption {
	return func(c *SignInCoordinator) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

func NewSignInCoordinator(
	repo RepositoryManager,
	guard *LockoutGuard,
	resolver *PrincipalResolver,
	mint *SessionMint,
	opts ...SignInOption,
) *SignInCoordinator {
	coordinator := &SignInCoordinator{
		repo:                  repo,
		guard:                 guard,
		resolver:              resolver,
		mint:                  mint,
		auth:                  BcryptAuthenticator{},
		requireConfirmedEmail: true,
		logger:                &defLogger{},
		activitySink:          &noopActivitySink{},
	}

	for _, opt := range opts {
		opt(coordinator)
	}

	return coordinator
}

// SignIn runs one credential attempt.
//
// Order matters: the lockout window is checked before the password so a
// locked account never leaks whether the password was right, a failed
// password is recorded before reporting invalid credentials, and the
// confirmed email requirement is applied only once the password verified
// so it cannot be used to probe accounts.
func (c *SignInCoordinator) SignIn(ctx context.Context, input SignInInput) (SignInResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))

	user, err := c.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if IsRecordNotFound(err) {
			c.logger.Debug("sign in attempt for unknown email")
			return SignInResult{Status: SignInInvalidCredentials}, nil
		}
		return SignInResult{}, WrapStoreError(err, "failed to load account for sign in")
	}

	if c.guard.IsLockedOut(user) {
		return SignInResult{Status: SignInLockedOut, User: user}, nil
	}

	if !user.HasPassword() || c.auth.ComparePasswordAndHash(input.Password, user.PasswordHash) != nil {
		updated, engaged, err := c.guard.RecordFailure(ctx, user)
		if err != nil {
			return SignInResult{}, err
		}

		recordActivity(ctx, c.activitySink, c.logger, ActivityEvent{
			EventType: ActivityEventSignInFailure,
			UserID:    user.ID.String(),
			Metadata:  map[string]any{"failed_attempts": updated.FailedAttempts},
		})

		if engaged {
			return SignInResult{Status: SignInLockedOut, User: updated}, nil
		}
		return SignInResult{Status: SignInInvalidCredentials, User: updated}, nil
	}

	if c.requireConfirmedEmail && !user.EmailConfirmed {
		return SignInResult{Status: SignInEmailNotConfirmed, User: user}, nil
	}

	if err := c.guard.RecordSuccess(ctx, user); err != nil {
		return SignInResult{}, err
	}

	return c.admit(ctx, user, input.Remember)
}

// admit resolves the principal and mints a session token for an account that
// already passed every admission check.
func (c *SignInCoordinator) admit(ctx context.Context, user *User, remember bool) (SignInResult, error) {
	principal, err := c.resolver.Resolve(ctx, user)
	if err != nil {
		return SignInResult{}, err
	}

	token, err := c.mint.Sign(principal, remember)
	if err != nil {
		return SignInResult{}, err
	}

	recordActivity(ctx, c.activitySink, c.logger, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"remember": remember},
	})

	return SignInResult{
		Status:       SignInSuccess,
		SessionToken: token,
		Principal:    principal,
		User:         user,
	}, nil
}
