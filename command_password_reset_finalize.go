package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Email      string `json:"email"`
	Token      string `json:"token"`
	Password   string `json:"password"`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

type FinalizePasswordResetResponse struct {
	User    *User
	Success bool
}

// FinalizePasswordResetHandler completes a reset: it verifies the reset
// token, stores the new password hash under a fresh security stamp so every
// outstanding token dies, and lifts any active lockout so the owner can sign
// in immediately.
type FinalizePasswordResetHandler struct {
	repo              RepositoryManager
	tokens            *VerificationTokenService
	guard             *LockoutGuard
	passwordMinLength int
	passwordMinUnique int
	logger            Logger
	activitySink      ActivitySink
}

type FinalizePasswordResetOption func(*FinalizePasswordResetHandler)

func WithResetPasswordPolicy(minLength, minUnique int) FinalizePasswordResetOption {
	return func(h *FinalizePasswordResetHandler) {
		if minLength > 0 {
			h.passwordMinLength = minLength
		}
		if minUnique > 0 {
			h.passwordMinUnique = minUnique
		}
	}
}

func WithResetFinalizeLogger(l Logger) FinalizePasswordResetOption {
	return func(h *FinalizePasswordResetHandler) {
		h.logger = normalizeLogger(l)
	}
}

func WithResetFinalizeActivitySink(sink ActivitySink) FinalizePasswordResetOption {
	return func(h *FinalizePasswordResetHandler) {
		h.activitySink = normalizeActivitySink(sink)
	}
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens *VerificationTokenService, guard *LockoutGuard, opts ...FinalizePasswordResetOption) *FinalizePasswordResetHandler {
	handler := &FinalizePasswordResetHandler{
		repo:              repo,
		tokens:            tokens,
		guard:             guard,
		passwordMinLength: 8,
		passwordMinUnique: 3,
		logger:            &defLogger{},
		activitySink:      &noopActivitySink{},
	}

	for _, opt := range opts {
		opt(handler)
	}

	return handler
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(event.Email))

	user, err := h.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if IsRecordNotFound(err) {
			return ErrInvalidToken
		}
		return WrapStoreError(err, "failed to load user for password reset")
	}

	if err := h.tokens.ValidateToken(user, PurposePasswordReset, event.Token); err != nil {
		return err
	}

	if err := ValidatePassword(event.Password, h.passwordMinLength, h.passwordMinUnique); err != nil {
		return err
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.Users().ResetPasswordTx(ctx, tx, user.ID, hash, NewSecurityStamp())
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store new password")
	}

	// the owner just proved control of the mailbox, an active lockout
	// only punishes them now
	if h.guard.IsLockedOut(user) {
		if user, err = h.guard.Unlock(ctx, user); err != nil {
			return err
		}
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		UserID:    user.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{User: user, Success: true})
	}

	return nil
}
