package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeleteUserMessage struct {
	UserID uuid.UUID `json:"user_id"`
}

func (e DeleteUserMessage) Type() string { return "user.delete" }

// DeleteUserHandler removes an account and everything hanging off it: role
// assignments, claim grants and external login links go in the same
// transaction as the user row.
type DeleteUserHandler struct {
	repo         RepositoryManager
	logger       Logger
	activitySink ActivitySink
}

type DeleteUserOption func(*DeleteUserHandler)

func WithDeleteUserLogger(l Logger) DeleteUserOption {
	return func(h *DeleteUserHandler) {
		h.logger = normalizeLogger(l)
	}
}

func WithDeleteUserActivitySink(sink ActivitySink) DeleteUserOption {
	return func(h *DeleteUserHandler) {
		h.activitySink = normalizeActivitySink(sink)
	}
}

func NewDeleteUserHandler(repo RepositoryManager, opts ...DeleteUserOption) *DeleteUserHandler {
	handler := &DeleteUserHandler{
		repo:         repo,
		logger:       &defLogger{},
		activitySink: &noopActivitySink{},
	}

	for _, opt := range opts {
		opt(handler)
	}

	return handler
}

func (h *DeleteUserHandler) Execute(ctx context.Context, event DeleteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteUserHandler) execute(ctx context.Context, event DeleteUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByID(ctx, event.UserID.String())
	if err != nil {
		if IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return WrapStoreError(err, "failed to load user for deletion")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.Roles().RemoveAllForUserTx(ctx, tx, user.ID); err != nil {
			return err
		}
		if err := h.repo.UserClaims().RemoveAllForUserTx(ctx, tx, user.ID); err != nil {
			return err
		}
		if err := h.repo.ExternalLogins().RemoveAllForUserTx(ctx, tx, user.ID); err != nil {
			return err
		}

		// hard delete, the soft delete column is for application level
		// deactivation only
		_, err := tx.NewDelete().
			Model((*User)(nil)).
			Where("id = ?", user.ID).
			ForceDelete().
			Exec(ctx)
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user deletion transaction failed")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventUserDeleted,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"email": user.Email},
	})

	return nil
}
