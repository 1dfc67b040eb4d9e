package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles manages role records and user-role assignments.
type Roles interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	GetByNames(ctx context.Context, names []string) ([]*Role, error)
	List(ctx context.Context) ([]*Role, error)

	Create(ctx context.Context, role *Role) (*Role, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*Role, error)
	Delete(ctx context.Context, id uuid.UUID) error

	ForUser(ctx context.Context, userID uuid.UUID) ([]*Role, error)
	UsersForRole(ctx context.Context, roleID uuid.UUID) ([]*User, error)

	RemoveAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
	AssignTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, roleIDs []uuid.UUID) error
}

type roles struct {
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	return &roles{db: db}
}

func (r *roles) GetByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	record := &Role{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isEmptyResult(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (r *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	record := &Role{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isEmptyResult(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"name": name})
		}
		return nil, err
	}

	return record, nil
}

func (r *roles) GetByNames(ctx context.Context, names []string) ([]*Role, error) {
	if len(names) == 0 {
		return []*Role{}, nil
	}

	var records []*Role
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.name IN (?)", bun.In(names)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *roles) List(ctx context.Context) ([]*Role, error) {
	var records []*Role
	err := r.db.NewSelect().
		Model(&records).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *roles) Create(ctx context.Context, role *Role) (*Role, error) {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}

	if _, err := r.db.NewInsert().Model(role).Exec(ctx); err != nil {
		return nil, err
	}

	return role, nil
}

func (r *roles) Rename(ctx context.Context, id uuid.UUID, name string) (*Role, error) {
	record := &Role{ID: id, Name: name}
	res, err := r.db.NewUpdate().
		Model(record).
		Column("name").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return r.GetByID(ctx, id)
}

// Delete removes the role and its assignments together.
func (r *roles) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*UserRole)(nil)).
			Where("role_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*Role)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}

		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}

		return nil
	})
}

func (r *roles) ForUser(ctx context.Context, userID uuid.UUID) ([]*Role, error) {
	var records []*Role
	err := r.db.NewSelect().
		Model(&records).
		Join("JOIN user_roles AS usrrol ON usrrol.role_id = ?TableAlias.id").
		Where("usrrol.user_id = ?", userID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *roles) UsersForRole(ctx context.Context, roleID uuid.UUID) ([]*User, error) {
	var records []*User
	err := r.db.NewSelect().
		Model(&records).
		Join("JOIN user_roles AS usrrol ON usrrol.user_id = ?TableAlias.id").
		Where("usrrol.role_id = ?", roleID).
		Order("username ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *roles) RemoveAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*UserRole)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (r *roles) AssignTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, roleIDs []uuid.UUID) error {
	if len(roleIDs) == 0 {
		return nil
	}

	assignments := make([]*UserRole, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		assignments = append(assignments, &UserRole{
			UserID: userID,
			RoleID: roleID,
		})
	}

	_, err := tx.NewInsert().Model(&assignments).Exec(ctx)
	return err
}
