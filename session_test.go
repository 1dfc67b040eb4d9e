package identity_test

import (
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrincipal() *identity.Principal {
	return &identity.Principal{
		UserID:   uuid.NewString(),
		Username: "pepe",
		Email:    "pepe.rone@example.com",
		Roles:    []string{"Admin"},
		Claims: []identity.ClaimPair{
			{Type: identity.ClaimTypeDeleteRole, Value: identity.ClaimValueGranted},
		},
	}
}

func TestSessionMint_SignAndValidate(t *testing.T) {
	mint := identity.NewSessionMint(
		[]byte("test-session-signing-key"),
		identity.WithSessionIssuer("identity-test", []string{"identity-clients"}),
	)

	principal := testPrincipal()

	token, err := mint.Sign(principal, false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mint.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, principal.UserID, claims.Subject)
	assert.Equal(t, "identity-test", claims.Issuer)

	rebuilt := identity.PrincipalFromClaims(claims)
	require.NotNil(t, rebuilt)
	assert.Equal(t, principal.UserID, rebuilt.UserID)
	assert.True(t, rebuilt.HasRole("Admin"))
	assert.True(t, rebuilt.HasClaim(identity.ClaimTypeDeleteRole, identity.ClaimValueGranted))
}

func TestSessionMint_RejectsWrongKey(t *testing.T) {
	mint := identity.NewSessionMint([]byte("test-session-signing-key"))
	other := identity.NewSessionMint([]byte("a-different-signing-key!"))

	token, err := mint.Sign(testPrincipal(), false)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestSessionMint_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mint := identity.NewSessionMint(
		[]byte("test-session-signing-key"),
		identity.WithSessionClock(func() time.Time { return now }),
		identity.WithSessionDurations(time.Hour, 24*time.Hour),
	)

	standard, err := mint.Sign(testPrincipal(), false)
	require.NoError(t, err)
	extended, err := mint.Sign(testPrincipal(), true)
	require.NoError(t, err)

	// two hours later the standard session is dead, the extended one lives
	now = now.Add(2 * time.Hour)

	_, err = mint.Validate(standard)
	assert.ErrorIs(t, err, identity.ErrTokenExpired)

	_, err = mint.Validate(extended)
	assert.NoError(t, err)
}

func TestSessionMint_NilPrincipal(t *testing.T) {
	mint := identity.NewSessionMint([]byte("test-session-signing-key"))

	_, err := mint.Sign(nil, false)
	assert.Error(t, err)
}
