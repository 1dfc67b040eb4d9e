package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ConfirmEmailMessage struct {
	Email      string `json:"email"`
	Token      string `json:"token"`
	OnResponse func(resp *ConfirmEmailResponse)
}

func (e ConfirmEmailMessage) Type() string { return "user.confirm_email" }

type ConfirmEmailResponse struct {
	User    *User
	Success bool
}

// ConfirmEmailHandler validates a confirmation token against the account it
// was issued for and marks the email address confirmed. Confirming an
// already confirmed account succeeds as long as the token still verifies.
type ConfirmEmailHandler struct {
	repo         RepositoryManager
	tokens       *VerificationTokenService
	logger       Logger
	activitySink ActivitySink
}

type ConfirmEmailOption func(*ConfirmEmailHandler)

func WithConfirmEmailLogger(l Logger) ConfirmEmailOption {
	return func(h *ConfirmEmailHandler) {
		h.logger = normalizeLogger(l)
	}
}

func WithConfirmEmailActivitySink(sink ActivitySink) ConfirmEmailOption {
	return func(h *ConfirmEmailHandler) {
		h.activitySink = normalizeActivitySink(sink)
	}
}

func NewConfirmEmailHandler(repo RepositoryManager, tokens *VerificationTokenService, opts ...ConfirmEmailOption) *ConfirmEmailHandler {
	handler := &ConfirmEmailHandler{
		repo:         repo,
		tokens:       tokens,
		logger:       &defLogger{},
		activitySink: &noopActivitySink{},
	}

	for _, opt := range opts {
		opt(handler)
	}

	return handler
}

func (h *ConfirmEmailHandler) Execute(ctx context.Context, event ConfirmEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailHandler) execute(ctx context.Context, event ConfirmEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(event.Email))

	user, err := h.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if IsRecordNotFound(err) {
			return ErrInvalidToken
		}
		return WrapStoreError(err, "failed to load user for email confirmation")
	}

	if err := h.tokens.ValidateToken(user, PurposeEmailConfirmation, event.Token); err != nil {
		return err
	}

	var confirmed *User
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		confirmed, err = h.repo.Users().ConfirmEmailTx(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm email")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventEmailConfirmed,
		UserID:    confirmed.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&ConfirmEmailResponse{User: confirmed, Success: true})
	}

	return nil
}
