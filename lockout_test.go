package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockoutGuard_IsLockedOut(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t)
	guard := identity.NewLockoutGuard(repo.Users(),
		identity.WithLockoutClock(func() time.Time { return now }),
	)

	future := now.Add(10 * time.Minute)
	past := now.Add(-10 * time.Minute)

	t.Run("nil user is never locked", func(t *testing.T) {
		assert.False(t, guard.IsLockedOut(nil))
	})

	t.Run("future lockout end locks", func(t *testing.T) {
		user := &identity.User{LockoutEnabled: true, LockoutEnd: &future}
		assert.True(t, guard.IsLockedOut(user))
	})

	t.Run("elapsed lockout end does not lock", func(t *testing.T) {
		user := &identity.User{LockoutEnabled: true, LockoutEnd: &past}
		assert.False(t, guard.IsLockedOut(user))
	})

	t.Run("disabled lockout never locks", func(t *testing.T) {
		user := &identity.User{LockoutEnabled: false, LockoutEnd: &future}
		assert.False(t, guard.IsLockedOut(user))
	})
}

func TestLockoutGuard_RecordFailureEngagesAtThreshold(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	sink := &capturingSink{}

	guard := identity.NewLockoutGuard(repo.Users(),
		identity.WithLockoutPolicy(3, 15*time.Minute),
		identity.WithLockoutActivitySink(sink),
	)

	user := seedUser(t, repo, "locked@example.com", "Passw0rd!", true)

	for i := 1; i <= 2; i++ {
		updated, engaged, err := guard.RecordFailure(ctx, user)
		require.NoError(t, err)
		assert.False(t, engaged)
		assert.Equal(t, i, updated.FailedAttempts)
		assert.False(t, guard.IsLockedOut(updated))
	}

	updated, engaged, err := guard.RecordFailure(ctx, user)
	require.NoError(t, err)
	assert.True(t, engaged)
	assert.Equal(t, 0, updated.FailedAttempts, "engaging spends the budget")
	assert.True(t, guard.IsLockedOut(updated))
	require.NotNil(t, updated.LockoutEnd)

	assert.True(t, sink.has(identity.ActivityEventLockout))
}

func TestLockoutGuard_ExpiredWindowGrantsFreshBudget(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	guard := identity.NewLockoutGuard(repo.Users(),
		identity.WithLockoutPolicy(2, 15*time.Minute),
		identity.WithLockoutClock(func() time.Time { return now }),
	)

	user := seedUser(t, repo, "expiry@example.com", "Passw0rd!", true)

	_, _, err := guard.RecordFailure(ctx, user)
	require.NoError(t, err)
	locked, engaged, err := guard.RecordFailure(ctx, user)
	require.NoError(t, err)
	require.True(t, engaged)
	require.True(t, guard.IsLockedOut(locked))

	// the window elapses on its own
	now = now.Add(16 * time.Minute)
	assert.False(t, guard.IsLockedOut(locked))

	// one failure after expiry must not re-lock
	updated, engaged, err := guard.RecordFailure(ctx, locked)
	require.NoError(t, err)
	assert.False(t, engaged)
	assert.Equal(t, 1, updated.FailedAttempts)
	assert.False(t, guard.IsLockedOut(updated))

	// the second one spends the fresh budget
	updated, engaged, err = guard.RecordFailure(ctx, updated)
	require.NoError(t, err)
	assert.True(t, engaged)
	assert.True(t, guard.IsLockedOut(updated))
}

func TestLockoutGuard_RecordSuccessResets(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	guard := identity.NewLockoutGuard(repo.Users(), identity.WithLockoutPolicy(5, 15*time.Minute))

	user := seedUser(t, repo, "reset@example.com", "Passw0rd!", true)

	_, _, err := guard.RecordFailure(ctx, user)
	require.NoError(t, err)
	_, _, err = guard.RecordFailure(ctx, user)
	require.NoError(t, err)

	require.NoError(t, guard.RecordSuccess(ctx, user))

	reloaded, err := repo.Users().GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.FailedAttempts)
	assert.Nil(t, reloaded.LockoutEnd)
}

func TestLockoutGuard_Unlock(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	sink := &capturingSink{}
	guard := identity.NewLockoutGuard(repo.Users(),
		identity.WithLockoutPolicy(1, time.Hour),
		identity.WithLockoutActivitySink(sink),
	)

	user := seedUser(t, repo, "unlock@example.com", "Passw0rd!", true)

	locked, engaged, err := guard.RecordFailure(ctx, user)
	require.NoError(t, err)
	require.True(t, engaged)
	require.True(t, guard.IsLockedOut(locked))

	unlocked, err := guard.Unlock(ctx, locked)
	require.NoError(t, err)
	assert.False(t, guard.IsLockedOut(unlocked))
	assert.Equal(t, 0, unlocked.FailedAttempts)
	assert.True(t, sink.has(identity.ActivityEventUnlock))
}

func TestLockoutGuard_DisabledAccountNeverEngages(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := identity.NewRepositoryManager(db)
	guard := identity.NewLockoutGuard(repo.Users(), identity.WithLockoutPolicy(1, time.Hour))

	user := seedUser(t, repo, "nolock@example.com", "Passw0rd!", true)

	// registration enables lockout, flip it off for this account
	user.LockoutEnabled = false
	_, err := db.NewUpdate().
		Model(user).
		Column("lockout_enabled").
		WherePK().
		Exec(ctx)
	require.NoError(t, err)

	updated, engaged, err := guard.RecordFailure(ctx, user)
	require.NoError(t, err)
	assert.False(t, engaged)
	assert.Equal(t, 1, updated.FailedAttempts, "the counter still tracks")
	assert.False(t, guard.IsLockedOut(updated))
}
