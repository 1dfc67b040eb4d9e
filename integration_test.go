package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Walks one account through its whole life: registration, email
// confirmation, sign in, lockout, recovery, role administration, and
// finally deletion.
func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	sink := &capturingSink{}

	tokens := identity.NewVerificationTokenService([]byte("lifecycle-verification-secret"))
	guard := identity.NewLockoutGuard(repo.Users(),
		identity.WithLockoutPolicy(3, 15*time.Minute),
		identity.WithLockoutActivitySink(sink),
	)
	resolver := identity.NewPrincipalResolver(identity.NewRepositoryPrincipalSource(repo))
	mint := identity.NewSessionMint([]byte("lifecycle-session-signing-key-32b"),
		identity.WithSessionIssuer("go-identity", []string{"web"}),
	)
	signIn := identity.NewSignInCoordinator(repo, guard, resolver, mint,
		identity.WithSignInActivitySink(sink),
	)

	register := identity.NewRegisterUserHandler(repo, tokens, identity.WithRegisterActivitySink(sink))
	confirm := identity.NewConfirmEmailHandler(repo, tokens, identity.WithConfirmEmailActivitySink(sink))
	resetInit := identity.NewInitializePasswordResetHandler(repo, tokens, identity.WithResetInitActivitySink(sink))
	resetFinalize := identity.NewFinalizePasswordResetHandler(repo, tokens, guard, identity.WithResetFinalizeActivitySink(sink))

	const email = "ada@example.com"
	const firstPassword = "Initial-Passw0rd!"
	const secondPassword = "Recovered-Passw0rd!"

	// registration leaves the account unconfirmed and unusable for sign in
	var registered *identity.RegisterUserResponse
	require.NoError(t, register.Execute(ctx, identity.RegisterUserMessage{
		Email:    email,
		Password: firstPassword,
		OnResponse: func(r *identity.RegisterUserResponse) {
			registered = r
		},
	}))
	require.NotNil(t, registered)

	result, err := signIn.SignIn(ctx, identity.SignInInput{Email: email, Password: firstPassword})
	require.NoError(t, err)
	assert.Equal(t, identity.SignInEmailNotConfirmed, result.Status)

	// the confirmation token from registration unlocks sign in
	require.NoError(t, confirm.Execute(ctx, identity.ConfirmEmailMessage{
		Email: email,
		Token: registered.ConfirmationToken,
	}))

	result, err = signIn.SignIn(ctx, identity.SignInInput{Email: email, Password: firstPassword})
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	assert.NotEmpty(t, result.SessionToken)

	// three bad passwords engage the lockout, then even the right one bounces
	for i := 0; i < 3; i++ {
		result, err = signIn.SignIn(ctx, identity.SignInInput{Email: email, Password: "wrong-guess"})
		require.NoError(t, err)
	}
	assert.Equal(t, identity.SignInLockedOut, result.Status)

	result, err = signIn.SignIn(ctx, identity.SignInInput{Email: email, Password: firstPassword})
	require.NoError(t, err)
	assert.Equal(t, identity.SignInLockedOut, result.Status)
	assert.True(t, sink.has(identity.ActivityEventLockout))

	// a password reset proves mailbox control and lifts the lockout
	var reset *identity.InitializePasswordResetResponse
	require.NoError(t, resetInit.Execute(ctx, identity.InitializePasswordResetMessage{
		Email: email,
		OnResponse: func(r *identity.InitializePasswordResetResponse) {
			reset = r
		},
	}))
	require.NotNil(t, reset)
	require.NotEmpty(t, reset.ResetToken)

	require.NoError(t, resetFinalize.Execute(ctx, identity.FinalizePasswordResetMessage{
		Email:    email,
		Token:    reset.ResetToken,
		Password: secondPassword,
	}))

	result, err = signIn.SignIn(ctx, identity.SignInInput{Email: email, Password: secondPassword})
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	result, err = signIn.SignIn(ctx, identity.SignInInput{Email: email, Password: firstPassword})
	require.NoError(t, err)
	assert.Equal(t, identity.SignInInvalidCredentials, result.Status, "the old password is gone")

	// grant the role administration surface and check it flows into sessions
	user := result.User
	if user == nil {
		user, err = repo.Users().GetByEmail(ctx, email)
		require.NoError(t, err)
	}

	seedRole(t, repo, "Admin")
	manager := identity.NewRoleClaimsManager(repo, identity.WithRoleClaimsActivitySink(sink))
	require.NoError(t, manager.ReplaceRoles(ctx, user.ID, []string{"Admin"}))
	require.NoError(t, manager.ReplaceClaims(ctx, user.ID, []identity.ClaimPair{
		{Type: identity.ClaimTypeDeleteRole, Value: identity.ClaimValueGranted},
	}))

	result, err = signIn.SignIn(ctx, identity.SignInInput{Email: email, Password: secondPassword})
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	claims, err := mint.Validate(result.SessionToken)
	require.NoError(t, err)
	principal := identity.PrincipalFromClaims(claims)

	policies := identity.DefaultPolicies()
	allowed, err := policies.Evaluate(principal, identity.PolicyDeleteRole)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = policies.Evaluate(principal, identity.PolicyEditRole)
	require.NoError(t, err)
	assert.False(t, allowed, "edit role claim was never granted")

	// deletion removes the account and everything hanging off it
	deleter := identity.NewDeleteUserHandler(repo, identity.WithDeleteUserActivitySink(sink))
	require.NoError(t, deleter.Execute(ctx, identity.DeleteUserMessage{UserID: user.ID}))

	result, err = signIn.SignIn(ctx, identity.SignInInput{Email: email, Password: secondPassword})
	require.NoError(t, err)
	assert.Equal(t, identity.SignInInvalidCredentials, result.Status)

	for _, event := range []identity.ActivityEventType{
		identity.ActivityEventRegistered,
		identity.ActivityEventEmailConfirmed,
		identity.ActivityEventSignInSuccess,
		identity.ActivityEventSignInFailure,
		identity.ActivityEventLockout,
		identity.ActivityEventPasswordResetRequest,
		identity.ActivityEventPasswordResetSuccess,
		identity.ActivityEventRolesReplaced,
		identity.ActivityEventClaimsReplaced,
		identity.ActivityEventUserDeleted,
	} {
		assert.True(t, sink.has(event), "expected %s in the activity trail", event)
	}
}
