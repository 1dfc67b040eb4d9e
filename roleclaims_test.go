package identity_test

import (
	"context"
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceRoles(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	sink := &capturingSink{}
	manager := identity.NewRoleClaimsManager(repo, identity.WithRoleClaimsActivitySink(sink))

	user := seedUser(t, repo, "roles@example.com", "Passw0rd!", true)
	seedRole(t, repo, "Admin")
	seedRole(t, repo, "Editor")
	seedRole(t, repo, "Viewer")

	t.Run("assigns the selected set", func(t *testing.T) {
		require.NoError(t, manager.ReplaceRoles(ctx, user.ID, []string{"Admin", "Editor"}))

		roles, err := repo.Roles().ForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, roles, 2)
		assert.Equal(t, "Admin", roles[0].Name)
		assert.Equal(t, "Editor", roles[1].Name)
		assert.True(t, sink.has(identity.ActivityEventRolesReplaced))
	})

	t.Run("replacement swaps, not merges", func(t *testing.T) {
		require.NoError(t, manager.ReplaceRoles(ctx, user.ID, []string{"Viewer"}))

		roles, err := repo.Roles().ForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, roles, 1)
		assert.Equal(t, "Viewer", roles[0].Name)
	})

	t.Run("empty set strips everything", func(t *testing.T) {
		require.NoError(t, manager.ReplaceRoles(ctx, user.ID, nil))

		roles, err := repo.Roles().ForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, roles)
	})

	t.Run("unknown names reject before any mutation", func(t *testing.T) {
		require.NoError(t, manager.ReplaceRoles(ctx, user.ID, []string{"Admin"}))

		err := manager.ReplaceRoles(ctx, user.ID, []string{"Admin", "NoSuchRole"})
		require.Error(t, err)

		roles, err := repo.Roles().ForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, roles, 1, "the existing assignment survives a rejected request")
		assert.Equal(t, "Admin", roles[0].Name)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := manager.ReplaceRoles(ctx, uuid.New(), []string{"Admin"})
		assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
	})
}

func TestReplaceClaims(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	manager := identity.NewRoleClaimsManager(repo)

	user := seedUser(t, repo, "claims@example.com", "Passw0rd!", true)

	t.Run("grants recognized claims", func(t *testing.T) {
		err := manager.ReplaceClaims(ctx, user.ID, []identity.ClaimPair{
			{Type: identity.ClaimTypeDeleteRole, Value: identity.ClaimValueGranted},
			{Type: identity.ClaimTypeEditRole, Value: identity.ClaimValueGranted},
		})
		require.NoError(t, err)

		claims, err := repo.UserClaims().ForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Len(t, claims, 2)
	})

	t.Run("duplicate types collapse, last value wins", func(t *testing.T) {
		err := manager.ReplaceClaims(ctx, user.ID, []identity.ClaimPair{
			{Type: identity.ClaimTypeEditRole, Value: "false"},
			{Type: identity.ClaimTypeEditRole, Value: identity.ClaimValueGranted},
		})
		require.NoError(t, err)

		claims, err := repo.UserClaims().ForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, claims, 1)
		assert.Equal(t, identity.ClaimValueGranted, claims[0].ClaimValue)
	})

	t.Run("unrecognized claim types reject before any mutation", func(t *testing.T) {
		err := manager.ReplaceClaims(ctx, user.ID, []identity.ClaimPair{
			{Type: "Not In Catalog", Value: "true"},
		})
		require.Error(t, err)

		claims, err := repo.UserClaims().ForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Len(t, claims, 1, "previous grants survive a rejected request")
	})

	t.Run("empty set strips everything", func(t *testing.T) {
		require.NoError(t, manager.ReplaceClaims(ctx, user.ID, nil))

		claims, err := repo.UserClaims().ForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, claims)
	})
}

func TestReplaceClaims_CustomCatalog(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	catalog := identity.NewClaimCatalog(
		identity.ClaimDescriptor{Type: "Publish Article"},
	)
	manager := identity.NewRoleClaimsManager(repo, identity.WithRoleClaimsCatalog(catalog))

	user := seedUser(t, repo, "custom@example.com", "Passw0rd!", true)

	require.NoError(t, manager.ReplaceClaims(ctx, user.ID, []identity.ClaimPair{
		{Type: "Publish Article", Value: "true"},
	}))

	err := manager.ReplaceClaims(ctx, user.ID, []identity.ClaimPair{
		{Type: identity.ClaimTypeDeleteRole, Value: identity.ClaimValueGranted},
	})
	assert.Error(t, err, "the default catalog no longer applies")
}
