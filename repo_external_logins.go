package identity

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ExternalLogins manages external identity links.
type ExternalLogins interface {
	FindByProviderKey(ctx context.Context, provider, providerKey string) (*ExternalLogin, error)
	ForUser(ctx context.Context, userID uuid.UUID) ([]*ExternalLogin, error)
	Create(ctx context.Context, link *ExternalLogin) (*ExternalLogin, error)
	CreateTx(ctx context.Context, tx bun.IDB, link *ExternalLogin) (*ExternalLogin, error)
	Remove(ctx context.Context, userID uuid.UUID, provider, providerKey string) error
	RemoveAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type externalLogins struct {
	db *bun.DB
}

var _ ExternalLogins = (*externalLogins)(nil)

func NewExternalLoginsRepository(db *bun.DB) ExternalLogins {
	return &externalLogins{db: db}
}

func (r *externalLogins) FindByProviderKey(ctx context.Context, provider, providerKey string) (*ExternalLogin, error) {
	record := &ExternalLogin{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider = ?", provider).
		Where("?TableAlias.provider_key = ?", providerKey).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isEmptyResult(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"provider":     provider,
					"provider_key": providerKey,
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *externalLogins) ForUser(ctx context.Context, userID uuid.UUID) ([]*ExternalLogin, error) {
	var records []*ExternalLogin
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("provider ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *externalLogins) Create(ctx context.Context, link *ExternalLogin) (*ExternalLogin, error) {
	return r.CreateTx(ctx, r.db, link)
}

// CreateTx inserts a link. An existing (provider, provider_key) pair makes
// it fail with ErrDuplicateExternalLogin regardless of which user owns it.
func (r *externalLogins) CreateTx(ctx context.Context, tx bun.IDB, link *ExternalLogin) (*ExternalLogin, error) {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}

	existing := &ExternalLogin{}
	err := tx.NewSelect().
		Model(existing).
		Where("?TableAlias.provider = ?", link.Provider).
		Where("?TableAlias.provider_key = ?", link.ProviderKey).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return nil, ErrDuplicateExternalLogin
	}
	if !isEmptyResult(err) {
		return nil, err
	}

	if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateExternalLogin
		}
		return nil, err
	}

	return link, nil
}

func (r *externalLogins) Remove(ctx context.Context, userID uuid.UUID, provider, providerKey string) error {
	res, err := r.db.NewDelete().
		Model((*ExternalLogin)(nil)).
		Where("user_id = ?", userID).
		Where("provider = ?", provider).
		Where("provider_key = ?", providerKey).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"user_id":      userID.String(),
				"provider":     provider,
				"provider_key": providerKey,
			})
	}

	return nil
}

func (r *externalLogins) RemoveAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*ExternalLogin)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

// isUniqueViolation matches driver specific constraint errors by message,
// enough to cover sqlite and postgres without importing either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
