package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserClaims manages per-user claim grants.
type UserClaims interface {
	ForUser(ctx context.Context, userID uuid.UUID) ([]*UserClaim, error)
	RemoveAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
	GrantTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, grants []ClaimPair) error
}

type userClaims struct {
	db *bun.DB
}

var _ UserClaims = (*userClaims)(nil)

func NewUserClaimsRepository(db *bun.DB) UserClaims {
	return &userClaims{db: db}
}

func (r *userClaims) ForUser(ctx context.Context, userID uuid.UUID) ([]*UserClaim, error) {
	var records []*UserClaim
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("claim_type ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *userClaims) RemoveAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*UserClaim)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

// GrantTx stores one row per claim type, the last value in grants wins.
func (r *userClaims) GrantTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, grants []ClaimPair) error {
	if len(grants) == 0 {
		return nil
	}

	byType := map[string]int{}
	records := make([]*UserClaim, 0, len(grants))
	for _, grant := range grants {
		if at, seen := byType[grant.Type]; seen {
			records[at].ClaimValue = grant.Value
			continue
		}

		byType[grant.Type] = len(records)
		records = append(records, &UserClaim{
			ID:         uuid.New(),
			UserID:     userID,
			ClaimType:  grant.Type,
			ClaimValue: grant.Value,
		})
	}

	_, err := tx.NewInsert().Model(&records).Exec(ctx)
	return err
}
