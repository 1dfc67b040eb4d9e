package identity_test

import (
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenUser() *identity.User {
	return &identity.User{
		ID:            uuid.New(),
		Email:         "pepe.rone@example.com",
		SecurityStamp: identity.NewSecurityStamp(),
	}
}

func TestVerificationTokenService_IssueAndValidate(t *testing.T) {
	service := identity.NewVerificationTokenService([]byte("test-verification-secret"))
	user := newTokenUser()

	t.Run("round trip per purpose", func(t *testing.T) {
		for _, purpose := range []identity.TokenPurpose{
			identity.PurposeEmailConfirmation,
			identity.PurposePasswordReset,
		} {
			token, err := service.IssueToken(user, purpose)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			assert.NoError(t, service.ValidateToken(user, purpose, token))
		}
	})

	t.Run("purpose mismatch is invalid", func(t *testing.T) {
		token, err := service.IssueToken(user, identity.PurposeEmailConfirmation)
		require.NoError(t, err)

		err = service.ValidateToken(user, identity.PurposePasswordReset, token)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("token for another user is invalid", func(t *testing.T) {
		token, err := service.IssueToken(user, identity.PurposeEmailConfirmation)
		require.NoError(t, err)

		other := newTokenUser()
		err = service.ValidateToken(other, identity.PurposeEmailConfirmation, token)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("tampered token is invalid", func(t *testing.T) {
		token, err := service.IssueToken(user, identity.PurposeEmailConfirmation)
		require.NoError(t, err)

		tampered := token[:len(token)-2] + "xx"
		err = service.ValidateToken(user, identity.PurposeEmailConfirmation, tampered)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("empty token is invalid", func(t *testing.T) {
		err := service.ValidateToken(user, identity.PurposeEmailConfirmation, "")
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("nil user cannot be issued a token", func(t *testing.T) {
		_, err := service.IssueToken(nil, identity.PurposeEmailConfirmation)
		assert.Error(t, err)
	})
}

func TestVerificationTokenService_StampRotation(t *testing.T) {
	service := identity.NewVerificationTokenService([]byte("test-verification-secret"))
	user := newTokenUser()

	token, err := service.IssueToken(user, identity.PurposePasswordReset)
	require.NoError(t, err)
	require.NoError(t, service.ValidateToken(user, identity.PurposePasswordReset, token))

	user.RotateSecurityStamp()

	err = service.ValidateToken(user, identity.PurposePasswordReset, token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken,
		"rotation must be indistinguishable from a forged signature")
}

func TestVerificationTokenService_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	service := identity.NewVerificationTokenService(
		[]byte("test-verification-secret"),
		identity.WithTokenClock(clock),
	)
	user := newTokenUser()

	token, err := service.IssueToken(user, identity.PurposePasswordReset)
	require.NoError(t, err)

	now = now.Add(5*time.Hour - time.Minute)
	assert.NoError(t, service.ValidateToken(user, identity.PurposePasswordReset, token))

	now = now.Add(2 * time.Minute)
	err = service.ValidateToken(user, identity.PurposePasswordReset, token)
	assert.ErrorIs(t, err, identity.ErrTokenExpired)
}

func TestVerificationTokenService_CustomLifespan(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	service := identity.NewVerificationTokenService(
		[]byte("test-verification-secret"),
		identity.WithTokenClock(clock),
		identity.WithTokenLifespan(identity.PurposeEmailConfirmation, time.Minute),
	)
	user := newTokenUser()

	token, err := service.IssueToken(user, identity.PurposeEmailConfirmation)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	err = service.ValidateToken(user, identity.PurposeEmailConfirmation, token)
	assert.ErrorIs(t, err, identity.ErrTokenExpired)
}
