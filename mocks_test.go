package identity_test

import (
	"context"
	"database/sql"
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

type capturingSink struct {
	events []identity.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt identity.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) has(eventType identity.ActivityEventType) bool {
	for _, evt := range c.events {
		if evt.EventType == eventType {
			return true
		}
	}
	return false
}

// fastAuthenticator avoids the production bcrypt cost in tests that only
// care about match/no-match.
type fastAuthenticator struct{}

func (fastAuthenticator) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(h), err
}

func (fastAuthenticator) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return identity.ErrMismatchedHashAndPassword
	}
	return nil
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []any{
		(*identity.User)(nil),
		(*identity.Role)(nil),
		(*identity.UserRole)(nil),
		(*identity.UserClaim)(nil),
		(*identity.ExternalLogin)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}

func newTestRepo(t *testing.T) identity.RepositoryManager {
	t.Helper()
	return identity.NewRepositoryManager(newTestDB(t))
}

func seedUser(t *testing.T, repo identity.RepositoryManager, email, password string, confirmed bool) *identity.User {
	t.Helper()

	user := &identity.User{Email: email}
	if password != "" {
		hash, err := fastAuthenticator{}.HashPassword(password)
		require.NoError(t, err)
		user.PasswordHash = hash
	}

	created, err := repo.Users().Register(context.Background(), user)
	require.NoError(t, err)

	if confirmed {
		created, err = repo.Users().ConfirmEmail(context.Background(), created.ID)
		require.NoError(t, err)
	}

	return created
}

func seedRole(t *testing.T, repo identity.RepositoryManager, name string) *identity.Role {
	t.Helper()

	role, err := repo.Roles().Create(context.Background(), &identity.Role{Name: name})
	require.NoError(t, err)
	return role
}

func testPrincipalResolver(repo identity.RepositoryManager) *identity.PrincipalResolver {
	return identity.NewPrincipalResolver(identity.NewRepositoryPrincipalSource(repo))
}
