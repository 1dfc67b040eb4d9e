package identity

import (
	"context"
	"time"
)

// LockoutGuard tracks consecutive sign in failures per account and engages a
// time boxed lockout once the threshold is met. Counters live on the user row
// and failure tracking runs as a single conditional update, so concurrent
// failed attempts never leave the account past the threshold without a
// lockout end.
type LockoutGuard struct {
	users        Users
	maxAttempts  int
	lockoutSpan  time.Duration
	now          func() time.Time
	logger       Logger
	activitySink ActivitySink
}

type LockoutGuardOption func(*LockoutGuard)

func WithLockoutPolicy(maxAttempts int, span time.Duration) LockoutGuardOption {
	return func(g *LockoutGuard) {
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
		if span > 0 {
			g.lockoutSpan = span
		}
	}
}

func WithLockoutClock(now func() time.Time) LockoutGuardOption {
	return func(g *LockoutGuard) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLockoutLogger(logger Logger) LockoutGuardOption {
	return func(g *LockoutGuard) {
		g.logger = normalizeLogger(logger)
	}
}

func WithLockoutActivitySink(sink ActivitySink) LockoutGuardOption {
	return func(g *LockoutGuard) {
		g.activitySink = normalizeActivitySink(sink)
	}
}

func NewLockoutGuard(users Users, opts ...LockoutGuardOption) *LockoutGuard {
	guard := &LockoutGuard{
		users:        users,
		maxAttempts:  5,
		lockoutSpan:  15 * time.Minute,
		now:          time.Now,
		logger:       &defLogger{},
		activitySink: &noopActivitySink{},
	}

	for _, opt := range opts {
		opt(guard)
	}

	return guard
}

// IsLockedOut reports whether the account is currently locked. It never
// touches the store.
func (g *LockoutGuard) IsLockedOut(user *User) bool {
	if user == nil || !user.LockoutEnabled {
		return false
	}
	if user.LockoutEnd == nil {
		return false
	}
	return user.LockoutEnd.After(g.now())
}

// RecordFailure bumps the failure counter and reports whether this attempt
// engaged the lockout. Engaging resets the counter, so an elapsed window
// leaves the account with a full attempt budget again.
func (g *LockoutGuard) RecordFailure(ctx context.Context, user *User) (*User, bool, error) {
	wasLocked := g.IsLockedOut(user)

	updated, err := g.users.TrackFailedSignIn(ctx, user, g.maxAttempts, g.now().Add(g.lockoutSpan))
	if err != nil {
		return nil, false, WrapStoreError(err, "failed to track sign in failure")
	}

	engaged := !wasLocked && g.IsLockedOut(updated)
	if engaged {
		g.logger.Warn("account locked out user_id=%s until=%s", updated.ID, updated.LockoutEnd)
		recordActivity(ctx, g.activitySink, g.logger, ActivityEvent{
			EventType: ActivityEventLockout,
			UserID:    updated.ID.String(),
			Metadata: map[string]any{
				"max_attempts": g.maxAttempts,
				"lockout_end":  updated.LockoutEnd,
			},
		})
	}

	return updated, engaged, nil
}

// RecordSuccess resets the failure counter and clears any lockout window.
func (g *LockoutGuard) RecordSuccess(ctx context.Context, user *User) error {
	if err := g.users.TrackSuccessfulSignIn(ctx, user); err != nil {
		return WrapStoreError(err, "failed to reset sign in failures")
	}
	return nil
}

// Unlock ends an active lockout immediately and resets the counter.
func (g *LockoutGuard) Unlock(ctx context.Context, user *User) (*User, error) {
	updated, err := g.users.SetLockoutEnd(ctx, user.ID, g.now())
	if err != nil {
		return nil, WrapStoreError(err, "failed to clear lockout")
	}

	recordActivity(ctx, g.activitySink, g.logger, ActivityEvent{
		EventType: ActivityEventUnlock,
		UserID:    updated.ID.String(),
	})

	return updated, nil
}
