package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	UserID          uuid.UUID `json:"user_id"`
	CurrentPassword string    `json:"current_password"`
	NewPassword     string    `json:"new_password"`
}

func (e ChangePasswordMessage) Type() string { return "user.change_password" }

type AddPasswordMessage struct {
	UserID   uuid.UUID `json:"user_id"`
	Password string    `json:"password"`
}

func (e AddPasswordMessage) Type() string { return "user.add_password" }

// ChangePasswordHandler covers both password flows for a signed in account:
// changing an existing password after verifying the current one, and adding
// a first password to an account created through an external login. Both
// store the hash under a fresh security stamp.
type ChangePasswordHandler struct {
	repo              RepositoryManager
	auth              PasswordAuthenticator
	passwordMinLength int
	passwordMinUnique int
	logger            Logger
	activitySink      ActivitySink
}

type ChangePasswordOption func(*ChangePasswordHandler)

func WithChangePasswordPolicy(minLength, minUnique int) ChangePasswordOption {
	return func(h *ChangePasswordHandler) {
		if minLength > 0 {
			h.passwordMinLength = minLength
		}
		if minUnique > 0 {
			h.passwordMinUnique = minUnique
		}
	}
}

func WithChangePasswordAuthenticator(auth PasswordAuthenticator) ChangePasswordOption {
	return func(h *ChangePasswordHandler) {
		if auth != nil {
			h.auth = auth
		}
	}
}

func WithChangePasswordLogger(l Logger) ChangePasswordOption {
	return func(h *ChangePasswordHandler) {
		h.logger = normalizeLogger(l)
	}
}

func WithChangePasswordActivitySink(sink ActivitySink) ChangePasswordOption {
	return func(h *ChangePasswordHandler) {
		h.activitySink = normalizeActivitySink(sink)
	}
}

func NewChangePasswordHandler(repo RepositoryManager, opts ...ChangePasswordOption) *ChangePasswordHandler {
	handler := &ChangePasswordHandler{
		repo:              repo,
		auth:              BcryptAuthenticator{},
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

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.loadUser(ctx, event.UserID)
	if err != nil {
		return err
	}

	if !user.HasPassword() {
		return ErrInvalidCredentials
	}

	if err := h.auth.ComparePasswordAndHash(event.CurrentPassword, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	if err := h.storePassword(ctx, user, event.NewPassword); err != nil {
		return err
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		UserID:    user.ID.String(),
	})

	return nil
}

// ExecuteAdd attaches a first local password. It refuses when the account
// already has one, the change flow must be used instead.
func (h *ChangePasswordHandler) ExecuteAdd(ctx context.Context, event AddPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled while adding password",
		)
	default:
		return h.executeAdd(ctx, event)
	}
}

func (h *ChangePasswordHandler) executeAdd(ctx context.Context, event AddPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.loadUser(ctx, event.UserID)
	if err != nil {
		return err
	}

	if user.HasPassword() {
		return goerrors.New("account already has a password", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict)
	}

	if err := h.storePassword(ctx, user, event.Password); err != nil {
		return err
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"added": true},
	})

	return nil
}

func (h *ChangePasswordHandler) loadUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := h.repo.Users().GetByID(ctx, id.String())
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, WrapStoreError(err, "failed to load user for password change")
	}
	return user, nil
}

func (h *ChangePasswordHandler) storePassword(ctx context.Context, user *User, password string) error {
	if err := ValidatePassword(password, h.passwordMinLength, h.passwordMinUnique); err != nil {
		return err
	}

	hash, err := h.auth.HashPassword(password)
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store password")
	}

	return nil
}
