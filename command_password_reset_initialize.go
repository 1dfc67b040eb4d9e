package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// InitializePasswordResetResponse always reports Accepted regardless of
// whether the address maps to an account. ResetToken is set only when a
// reset was actually started, and must reach the user out of band.
type InitializePasswordResetResponse struct {
	Accepted   bool
	ResetToken string
}

// InitializePasswordResetHandler starts a password reset. Addresses with no
// account and accounts that never confirmed their email get the same
// response without a token, so the operation cannot be used to enumerate
// accounts.
type InitializePasswordResetHandler struct {
	repo         RepositoryManager
	tokens       *VerificationTokenService
	logger       Logger
	activitySink ActivitySink
}

type InitializePasswordResetOption func(*InitializePasswordResetHandler)

func WithResetInitLogger(l Logger) InitializePasswordResetOption {
	return func(h *InitializePasswordResetHandler) {
		h.logger = normalizeLogger(l)
	}
}

func WithResetInitActivitySink(sink ActivitySink) InitializePasswordResetOption {
	return func(h *InitializePasswordResetHandler) {
		h.activitySink = normalizeActivitySink(sink)
	}
}

func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *VerificationTokenService, opts ...InitializePasswordResetOption) *InitializePasswordResetHandler {
	handler := &InitializePasswordResetHandler{
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

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{Accepted: true}
	email := strings.ToLower(strings.TrimSpace(event.Email))

	user, err := h.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if IsRecordNotFound(err) {
			h.logger.Debug("password reset requested for unknown email")
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return WrapStoreError(err, "failed to load user for password reset")
	}

	if !user.EmailConfirmed {
		h.logger.Debug("password reset requested for unconfirmed account user_id=%s", user.ID)
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}

	token, err := h.tokens.IssueToken(user, PurposePasswordReset)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue reset token")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		UserID:    user.ID.String(),
	})

	resp.ResetToken = token
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
