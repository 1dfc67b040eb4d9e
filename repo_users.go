package identity

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Engaging the lockout zeroes the counter in the same branch, so once the
// window elapses the account starts over with a full attempt budget instead
// of re-locking on the first failure.
var trackFailedSignInSQL = `UPDATE "users" AS "usr"
SET
	"failed_attempts" = CASE
		WHEN "lockout_enabled" AND "failed_attempts" + 1 >= ? THEN 0
		ELSE "failed_attempts" + 1
	END,
	"lockout_end" = CASE
		WHEN "lockout_enabled" AND "failed_attempts" + 1 >= ? THEN ?
		ELSE "lockout_end"
	END
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var trackSuccessfulSignInSQL = `UPDATE "users" AS "usr"
SET
	"failed_attempts" = 0,
	"lockout_end" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var setLockoutEndSQL = `UPDATE "users" AS "usr"
SET
	"failed_attempts" = 0,
	"lockout_end" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var confirmEmailSQL = `UPDATE "users" AS "usr"
SET
	"is_email_confirmed" = TRUE
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// ResetUserPasswordSQL swaps the password hash and rotates the security stamp
// in one statement, so every outstanding verification token dies with the
// old stamp.
var ResetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"security_stamp" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var rotateSecurityStampSQL = `UPDATE "users" AS "usr"
SET
	"security_stamp" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)

	TrackFailedSignIn(ctx context.Context, user *User, threshold int, lockoutEnd time.Time) (*User, error)
	TrackFailedSignInTx(ctx context.Context, tx bun.IDB, user *User, threshold int, lockoutEnd time.Time) (*User, error)
	TrackSuccessfulSignIn(ctx context.Context, user *User) error
	TrackSuccessfulSignInTx(ctx context.Context, tx bun.IDB, user *User) error
	SetLockoutEnd(ctx context.Context, id uuid.UUID, until time.Time) (*User, error)
	SetLockoutEndTx(ctx context.Context, tx bun.IDB, id uuid.UUID, until time.Time) (*User, error)

	ConfirmEmail(ctx context.Context, id uuid.UUID) (*User, error)
	ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash, securityStamp string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash, securityStamp string) error

	RotateSecurityStamp(ctx context.Context, id uuid.UUID, securityStamp string) (*User, error)
	RotateSecurityStampTx(ctx context.Context, tx bun.IDB, id uuid.UUID, securityStamp string) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.CreateTx(ctx, tx, user)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isEmptyResult(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) TrackFailedSignIn(ctx context.Context, user *User, threshold int, lockoutEnd time.Time) (*User, error) {
	return a.TrackFailedSignInTx(ctx, a.db, user, threshold, lockoutEnd)
}

// TrackFailedSignInTx bumps the failure counter and engages the lockout in a
// single statement. Concurrent failures may overshoot the counter but can
// never skip the threshold.
func (a *users) TrackFailedSignInTx(ctx context.Context, tx bun.IDB, user *User, threshold int, lockoutEnd time.Time) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, trackFailedSignInSQL, threshold, threshold, lockoutEnd, user.ID.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": user.ID.String(),
			})
	}

	return res[0], nil
}

func (a *users) TrackSuccessfulSignIn(ctx context.Context, user *User) error {
	return a.TrackSuccessfulSignInTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulSignInTx(ctx context.Context, tx bun.IDB, user *User) error {
	_, err := a.Repository.RawTx(ctx, tx, trackSuccessfulSignInSQL, user.ID.String())
	return err
}

func (a *users) SetLockoutEnd(ctx context.Context, id uuid.UUID, until time.Time) (*User, error) {
	return a.SetLockoutEndTx(ctx, a.db, id, until)
}

func (a *users) SetLockoutEndTx(ctx context.Context, tx bun.IDB, id uuid.UUID, until time.Time) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, setLockoutEndSQL, until, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (a *users) ConfirmEmail(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.ConfirmEmailTx(ctx, a.db, id)
}

func (a *users) ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, confirmEmailSQL, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash, securityStamp string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash, securityStamp)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash, securityStamp string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetUserPasswordSQL, passwordHash, securityStamp, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) RotateSecurityStamp(ctx context.Context, id uuid.UUID, securityStamp string) (*User, error) {
	return a.RotateSecurityStampTx(ctx, a.db, id, securityStamp)
}

func (a *users) RotateSecurityStampTx(ctx context.Context, tx bun.IDB, id uuid.UUID, securityStamp string) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, rotateSecurityStampSQL, securityStamp, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.SecurityStamp == "" {
		record.SecurityStamp = NewSecurityStamp()
	}

	if record.Username == "" && strings.Contains(record.Email, "@") {
		record.Username = strings.Split(record.Email, "@")[0]
	}

	record.LockoutEnabled = true
}
