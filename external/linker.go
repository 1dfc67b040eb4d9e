package external

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LinkOutcome describes what Complete did with an assertion.
type LinkOutcome string

const (
	// OutcomeSignedIn means an existing link matched and a session was minted.
	OutcomeSignedIn LinkOutcome = "signed_in"
	// OutcomeLinked means the assertion was attached to an existing confirmed
	// account and a session was minted.
	OutcomeLinked LinkOutcome = "linked"
	// OutcomeRequiresEmailConfirmation means a new passwordless account was
	// created and must confirm its email before it can sign in.
	OutcomeRequiresEmailConfirmation LinkOutcome = "requires_email_confirmation"
)

// Result is the outcome of completing an external sign in.
type Result struct {
	Outcome           LinkOutcome
	User              *identity.User
	Principal         *identity.Principal
	SessionToken      string
	ConfirmationToken string
	NewUser           bool
}

// Linker turns validated provider assertions into local sessions, linking or
// creating accounts along the way. The provider key, not the email, is the
// durable join between the external identity and the local account.
type Linker struct {
	repo         identity.RepositoryManager
	resolver     *identity.PrincipalResolver
	mint         *identity.SessionMint
	tokens       *identity.VerificationTokenService
	guard        *identity.LockoutGuard
	logger       identity.Logger
	activitySink identity.ActivitySink
}

type LinkerOption func(*Linker)

func WithLinkerLogger(l identity.Logger) LinkerOption {
	return func(lk *Linker) {
		if l != nil {
			lk.logger = l
		}
	}
}

func WithLinkerActivitySink(sink identity.ActivitySink) LinkerOption {
	return func(lk *Linker) {
		if sink != nil {
			lk.activitySink = sink
		}
	}
}

func NewLinker(
	repo identity.RepositoryManager,
	resolver *identity.PrincipalResolver,
	mint *identity.SessionMint,
	tokens *identity.VerificationTokenService,
	guard *identity.LockoutGuard,
	opts ...LinkerOption,
) *Linker {
	linker := &Linker{
		repo:         repo,
		resolver:     resolver,
		mint:         mint,
		tokens:       tokens,
		guard:        guard,
		logger:       identity.DefaultLogger(),
		activitySink: identity.NoopActivitySink(),
	}

	for _, opt := range opts {
		opt(linker)
	}

	return linker
}

// Complete resolves an assertion into a session.
//
// An existing (provider, key) link signs its account in directly. Otherwise
// the email decides: a confirmed account with the same address gets the link
// attached, an unconfirmed one is rejected so a provider assertion cannot
// bypass confirmation of an address someone else registered, and an unknown
// address becomes a new passwordless account that must confirm first.
func (l *Linker) Complete(ctx context.Context, assertion *Assertion) (*Result, error) {
	if assertion == nil || assertion.Provider == "" || assertion.ProviderKey == "" {
		return nil, ErrAssertionInvalid
	}

	link, err := l.repo.ExternalLogins().FindByProviderKey(ctx, assertion.Provider, assertion.ProviderKey)
	if err == nil {
		user, err := l.repo.Users().GetByID(ctx, link.UserID.String())
		if err != nil {
			return nil, identity.WrapStoreError(err, "failed to load linked account")
		}
		return l.signIn(ctx, user, OutcomeSignedIn)
	}
	if !identity.IsRecordNotFound(err) {
		return nil, identity.WrapStoreError(err, "failed to look up external link")
	}

	if assertion.Email == "" {
		return nil, ErrProviderEmailMissing
	}

	email := strings.ToLower(strings.TrimSpace(assertion.Email))

	user, err := l.repo.Users().GetByEmail(ctx, email)
	if err == nil {
		if !user.EmailConfirmed {
			return nil, identity.ErrEmailNotConfirmed
		}

		if err := l.attach(ctx, user, assertion); err != nil {
			return nil, err
		}

		return l.signIn(ctx, user, OutcomeLinked)
	}
	if !identity.IsRecordNotFound(err) {
		return nil, identity.WrapStoreError(err, "failed to look up account by email")
	}

	return l.provision(ctx, email, assertion)
}

// LinkToAccount attaches the assertion to an already authenticated local
// account. The caller is responsible for having authenticated the user.
func (l *Linker) LinkToAccount(ctx context.Context, userID uuid.UUID, assertion *Assertion) error {
	if assertion == nil || assertion.Provider == "" || assertion.ProviderKey == "" {
		return ErrAssertionInvalid
	}

	user, err := l.repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if identity.IsRecordNotFound(err) {
			return identity.ErrIdentityNotFound
		}
		return identity.WrapStoreError(err, "failed to load account for linking")
	}

	return l.attach(ctx, user, assertion)
}

// Unlink removes one external link. A passwordless account keeps its last
// link so it never loses every way to sign in.
func (l *Linker) Unlink(ctx context.Context, userID uuid.UUID, provider, providerKey string) error {
	user, err := l.repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if identity.IsRecordNotFound(err) {
			return identity.ErrIdentityNotFound
		}
		return identity.WrapStoreError(err, "failed to load account for unlinking")
	}

	if !user.HasPassword() {
		links, err := l.repo.ExternalLogins().ForUser(ctx, user.ID)
		if err != nil {
			return identity.WrapStoreError(err, "failed to list external links")
		}
		if len(links) <= 1 {
			return ErrLastAuthMethod
		}
	}

	if err := l.repo.ExternalLogins().Remove(ctx, user.ID, provider, providerKey); err != nil {
		if identity.IsRecordNotFound(err) {
			return ErrLinkNotFound
		}
		return identity.WrapStoreError(err, "failed to remove external link")
	}

	// link-set changes rotate the stamp like any other credential change
	if _, err := l.repo.Users().RotateSecurityStamp(ctx, user.ID, identity.NewSecurityStamp()); err != nil {
		return identity.WrapStoreError(err, "failed to rotate security stamp")
	}

	return nil
}

// attach creates the link and rotates the stamp in one transaction.
func (l *Linker) attach(ctx context.Context, user *identity.User, assertion *Assertion) error {
	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := l.repo.ExternalLogins().CreateTx(ctx, tx, &identity.ExternalLogin{
			Provider:    assertion.Provider,
			ProviderKey: assertion.ProviderKey,
			UserID:      user.ID,
			DisplayName: assertion.Name,
		})
		if err != nil {
			return err
		}

		_, err = l.repo.Users().RotateSecurityStampTx(ctx, tx, user.ID, identity.NewSecurityStamp())
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return identity.WrapStoreError(err, "failed to attach external link")
	}

	l.record(ctx, identity.ActivityEventExternalLinked, user, assertion)
	return nil
}

// provision creates a brand new passwordless account for the assertion.
func (l *Linker) provision(ctx context.Context, email string, assertion *Assertion) (*Result, error) {
	user := &identity.User{
		Email:    email,
		Username: usernameFromAssertion(email, assertion),
	}

	err := l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := l.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return err
		}
		user = created

		_, err = l.repo.ExternalLogins().CreateTx(ctx, tx, &identity.ExternalLogin{
			Provider:    assertion.Provider,
			ProviderKey: assertion.ProviderKey,
			UserID:      user.ID,
			DisplayName: assertion.Name,
		})
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, identity.WrapStoreError(err, "failed to provision external account")
	}

	token, err := l.tokens.IssueToken(user, identity.PurposeEmailConfirmation)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue confirmation token")
	}

	l.record(ctx, identity.ActivityEventExternalLinked, user, assertion)

	return &Result{
		Outcome:           OutcomeRequiresEmailConfirmation,
		User:              user,
		ConfirmationToken: token,
		NewUser:           true,
	}, nil
}

func (l *Linker) signIn(ctx context.Context, user *identity.User, outcome LinkOutcome) (*Result, error) {
	if l.guard.IsLockedOut(user) {
		return nil, identity.ErrLockedOut
	}

	principal, err := l.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}

	token, err := l.mint.Sign(principal, false)
	if err != nil {
		return nil, err
	}

	l.record(ctx, identity.ActivityEventExternalSignIn, user, nil)

	return &Result{
		Outcome:      outcome,
		User:         user,
		Principal:    principal,
		SessionToken: token,
	}, nil
}

func (l *Linker) record(ctx context.Context, eventType identity.ActivityEventType, user *identity.User, assertion *Assertion) {
	event := identity.ActivityEvent{
		EventType: eventType,
		UserID:    user.ID.String(),
	}
	if assertion != nil {
		event.Metadata = map[string]any{
			"provider":     assertion.Provider,
			"provider_key": assertion.ProviderKey,
		}
	}

	if err := l.activitySink.Record(ctx, event); err != nil {
		l.logger.Warn("failed to record activity event type=%s: %v", eventType, err)
	}
}

func usernameFromAssertion(email string, assertion *Assertion) string {
	if strings.Contains(email, "@") {
		return strings.Split(email, "@")[0]
	}
	return assertion.Provider + "_" + assertion.ProviderKey
}
