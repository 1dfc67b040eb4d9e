package identity

import (
	"context"

	"github.com/google/uuid"
)

// ClaimPair is one (type, value) grant as seen by the policy evaluator.
type ClaimPair struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Principal is the role/claim set resolved for an authenticated user. It is
// what every protected operation evaluates policies against.
type Principal struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username,omitempty"`
	Email    string      `json:"email,omitempty"`
	Roles    []string    `json:"roles,omitempty"`
	Claims   []ClaimPair `json:"claims,omitempty"`
}

// HasRole reports whether the principal carries the named role.
func (p *Principal) HasRole(name string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// HasClaim reports whether the principal carries the exact (type, value) pair.
func (p *Principal) HasClaim(claimType, claimValue string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.Claims {
		if c.Type == claimType && c.Value == claimValue {
			return true
		}
	}
	return false
}

// PrincipalSource is the slice of the store the resolver needs.
type PrincipalSource interface {
	RolesForUser(ctx context.Context, userID string) ([]*Role, error)
	ClaimsForUser(ctx context.Context, userID string) ([]*UserClaim, error)
}

// RepositoryPrincipalSource adapts a RepositoryManager into a
// PrincipalSource.
type RepositoryPrincipalSource struct {
	repo RepositoryManager
}

func NewRepositoryPrincipalSource(repo RepositoryManager) *RepositoryPrincipalSource {
	return &RepositoryPrincipalSource{repo: repo}
}

func (s *RepositoryPrincipalSource) RolesForUser(ctx context.Context, userID string) ([]*Role, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrIdentityNotFound
	}
	return s.repo.Roles().ForUser(ctx, id)
}

func (s *RepositoryPrincipalSource) ClaimsForUser(ctx context.Context, userID string) ([]*UserClaim, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrIdentityNotFound
	}
	return s.repo.UserClaims().ForUser(ctx, id)
}

// PrincipalResolver builds principals from persisted role and claim
// assignments.
type PrincipalResolver struct {
	source PrincipalSource
}

// NewPrincipalResolver creates a resolver over the given source.
func NewPrincipalResolver(source PrincipalSource) *PrincipalResolver {
	return &PrincipalResolver{source: source}
}

// Resolve loads the user's assignments and produces a Principal.
func (r *PrincipalResolver) Resolve(ctx context.Context, user *User) (*Principal, error) {
	if user == nil {
		return nil, ErrIdentityNotFound
	}

	roles, err := r.source.RolesForUser(ctx, user.ID.String())
	if err != nil {
		return nil, WrapStoreError(err, "failed to load roles for principal")
	}

	claims, err := r.source.ClaimsForUser(ctx, user.ID.String())
	if err != nil {
		return nil, WrapStoreError(err, "failed to load claims for principal")
	}

	principal := &Principal{
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
	}

	for _, role := range roles {
		principal.Roles = append(principal.Roles, role.Name)
	}

	for _, claim := range claims {
		principal.Claims = append(principal.Claims, ClaimPair{
			Type:  claim.ClaimType,
			Value: claim.ClaimValue,
		})
	}

	return principal, nil
}
