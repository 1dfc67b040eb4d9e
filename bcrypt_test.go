package identity_test

import (
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Run("hashes and verifies", func(t *testing.T) {
		hash, err := identity.HashPassword("Passw0rd!")
		require.NoError(t, err)
		require.NotEmpty(t, hash)

		assert.NoError(t, identity.ComparePasswordAndHash("Passw0rd!", hash))
		assert.ErrorIs(t,
			identity.ComparePasswordAndHash("passw0rd!", hash),
			identity.ErrMismatchedHashAndPassword,
		)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := identity.HashPassword("")
		assert.ErrorIs(t, err, identity.ErrNoEmptyString)
	})
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"meets policy", "Passw0rd!", true},
		{"exactly at the minimums", "aabbccdd", true},
		{"too short", "Pw0!", false},
		{"too few distinct characters", "aaaaaaaa", false},
		{"long but uniform", "aaaaaaaaaaaaaaaa", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := identity.ValidatePassword(tc.password, 8, 3)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidatePassword_AggregatesViolations(t *testing.T) {
	// short AND uniform: both problems must be reported at once
	err := identity.ValidatePassword("aa", 8, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "8")
}

func TestRandomPasswordHash(t *testing.T) {
	assert.NotEmpty(t, identity.RandomPasswordHash())
}
