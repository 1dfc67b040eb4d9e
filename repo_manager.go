package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Roles() Roles
	UserClaims() UserClaims
	ExternalLogins() ExternalLogins
}

type mngr struct {
	db             *bun.DB
	users          Users
	roles          Roles
	userClaims     UserClaims
	externalLogins ExternalLogins
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:             db,
		users:          NewUsersRepository(db),
		roles:          NewRolesRepository(db),
		userClaims:     NewUserClaimsRepository(db),
		externalLogins: NewExternalLoginsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.userClaims == nil {
		return errors.New("repository userClaims should be initialized")
	}

	if m.externalLogins == nil {
		return errors.New("repository externalLogins should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) UserClaims() UserClaims {
	return m.userClaims
}

func (m mngr) ExternalLogins() ExternalLogins {
	return m.externalLogins
}

func isEmptyResult(err error) bool {
	return err != nil && errors.Is(err, sql.ErrNoRows)
}
