package identity

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoleClaimsManager replaces a user's role and claim assignments wholesale.
//
// A replacement runs as two store operations: remove every current
// assignment, then add the selected ones. Each operation is atomic on its
// own but the pair is not, so a failure between them leaves the user with no
// assignments. That outcome surfaces as ErrPartialUpdate and the caller must
// retry the replacement.
type RoleClaimsManager struct {
	repo         RepositoryManager
	catalog      *ClaimCatalog
	logger       Logger
	activitySink ActivitySink
}

type RoleClaimsOption func(*RoleClaimsManager)

func WithRoleClaimsCatalog(catalog *ClaimCatalog) RoleClaimsOption {
	return func(m *RoleClaimsManager) {
		if catalog != nil {
			m.catalog = catalog
		}
	}
}

func WithRoleClaimsLogger(l Logger) RoleClaimsOption {
	return func(m *RoleClaimsManager) {
		m.logger = normalizeLogger(l)
	}
}

func WithRoleClaimsActivitySink(sink ActivitySink) RoleClaimsOption {
	return func(m *RoleClaimsManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

func NewRoleClaimsManager(repo RepositoryManager, opts ...RoleClaimsOption) *RoleClaimsManager {
	manager := &RoleClaimsManager{
		repo:         repo,
		catalog:      DefaultClaimCatalog(),
		logger:       &defLogger{},
		activitySink: &noopActivitySink{},
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

// ReplaceRoles swaps the user's role set for exactly the named roles. Every
// name must match an existing role; nothing is mutated otherwise. An empty
// slice strips all roles.
func (m *RoleClaimsManager) ReplaceRoles(ctx context.Context, userID uuid.UUID, roleNames []string) error {
	user, err := m.repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return WrapStoreError(err, "failed to load user for role replacement")
	}

	selected, err := m.repo.Roles().GetByNames(ctx, roleNames)
	if err != nil {
		return WrapStoreError(err, "failed to resolve roles for replacement")
	}

	if missing := missingRoleNames(roleNames, selected); len(missing) > 0 {
		return goerrors.New("unknown role names", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"missing": missing})
	}

	roleIDs := make([]uuid.UUID, 0, len(selected))
	for _, role := range selected {
		roleIDs = append(roleIDs, role.ID)
	}

	err = m.repo.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return m.repo.Roles().RemoveAllForUserTx(ctx, tx, userID)
	})
	if err != nil {
		return WrapStoreError(err, "failed to remove current roles")
	}

	err = m.repo.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return m.repo.Roles().AssignTx(ctx, tx, userID, roleIDs)
	})
	if err != nil {
		m.logger.Error("role replacement stranded user with no roles user_id=%s: %v", userID, err)
		return goerrors.Wrap(err, goerrors.CategoryConflict, "role replacement removed but could not add").
			WithTextCode(TextCodePartialUpdate)
	}

	recordActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventRolesReplaced,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"roles": roleNames},
	})

	return nil
}

// ReplaceClaims swaps the user's claim grants for exactly the given pairs.
// Every claim type must be recognized by the catalog; nothing is mutated
// otherwise. Duplicate types collapse to one row, last value wins.
func (m *RoleClaimsManager) ReplaceClaims(ctx context.Context, userID uuid.UUID, grants []ClaimPair) error {
	user, err := m.repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return WrapStoreError(err, "failed to load user for claim replacement")
	}

	var unrecognized []string
	for _, grant := range grants {
		if !m.catalog.Recognizes(grant.Type) {
			unrecognized = append(unrecognized, grant.Type)
		}
	}
	if len(unrecognized) > 0 {
		return goerrors.New("unrecognized claim types", goerrors.CategoryValidation).
			WithTextCode(TextCodeUnrecognizedClaimType).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"unrecognized": unrecognized})
	}

	err = m.repo.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return m.repo.UserClaims().RemoveAllForUserTx(ctx, tx, userID)
	})
	if err != nil {
		return WrapStoreError(err, "failed to remove current claims")
	}

	err = m.repo.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return m.repo.UserClaims().GrantTx(ctx, tx, userID, grants)
	})
	if err != nil {
		m.logger.Error("claim replacement stranded user with no claims user_id=%s: %v", userID, err)
		return goerrors.Wrap(err, goerrors.CategoryConflict, "claim replacement removed but could not add").
			WithTextCode(TextCodePartialUpdate)
	}

	recordActivity(ctx, m.activitySink, m.logger, ActivityEvent{
		EventType: ActivityEventClaimsReplaced,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"claim_count": len(grants)},
	})

	return nil
}

func missingRoleNames(requested []string, found []*Role) []string {
	byName := map[string]struct{}{}
	for _, role := range found {
		byName[role.Name] = struct{}{}
	}

	var missing []string
	for _, name := range requested {
		if _, ok := byName[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
