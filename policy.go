package identity

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Requirement is one condition a principal must satisfy.
type Requirement interface {
	SatisfiedBy(p *Principal) bool
	Describe() string
}

type roleRequirement struct {
	name string
}

func (r roleRequirement) SatisfiedBy(p *Principal) bool {
	return p.HasRole(r.name)
}

func (r roleRequirement) Describe() string {
	return fmt.Sprintf("role %q", r.name)
}

// RequireRole demands membership in the named role.
func RequireRole(name string) Requirement {
	return roleRequirement{name: name}
}

type claimRequirement struct {
	claimType  string
	claimValue string
}

func (r claimRequirement) SatisfiedBy(p *Principal) bool {
	return p.HasClaim(r.claimType, r.claimValue)
}

func (r claimRequirement) Describe() string {
	return fmt.Sprintf("claim %q=%q", r.claimType, r.claimValue)
}

// RequireClaim demands an exact (type, value) claim grant.
func RequireClaim(claimType, claimValue string) Requirement {
	return claimRequirement{claimType: claimType, claimValue: claimValue}
}

// Policy is a named conjunction of requirements.
type Policy struct {
	Name         string
	Requirements []Requirement
}

// Allows reports whether the principal satisfies every requirement.
func (p Policy) Allows(principal *Principal) bool {
	if principal == nil {
		return false
	}
	for _, req := range p.Requirements {
		if !req.SatisfiedBy(principal) {
			return false
		}
	}
	return true
}

// PolicyRegistry maps policy names to their requirements. Policies are
// registered at startup; registration is not synchronized and must finish
// before evaluation begins.
type PolicyRegistry struct {
	policies map[string]Policy
	order    []string
}

// NewPolicyRegistry creates an empty registry.
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{
		policies: map[string]Policy{},
	}
}

// Register adds a policy. Unnamed, requirement-less, or duplicate policies
// are rejected.
func (r *PolicyRegistry) Register(policy Policy) error {
	if policy.Name == "" {
		return goerrors.New("policy requires a name", goerrors.CategoryValidation)
	}

	if len(policy.Requirements) == 0 {
		return goerrors.New("policy requires at least one requirement", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"policy": policy.Name})
	}

	if _, exists := r.policies[policy.Name]; exists {
		return goerrors.New("policy already registered", goerrors.CategoryConflict).
			WithMetadata(map[string]any{"policy": policy.Name})
	}

	r.policies[policy.Name] = policy
	r.order = append(r.order, policy.Name)
	return nil
}

// MustRegister is Register for static setup code.
func (r *PolicyRegistry) MustRegister(policy Policy) *PolicyRegistry {
	if err := r.Register(policy); err != nil {
		panic(err)
	}
	return r
}

// Evaluate checks the named policy against the principal. It is pure: no
// side effects, no store access.
func (r *PolicyRegistry) Evaluate(principal *Principal, policyName string) (bool, error) {
	policy, ok := r.policies[policyName]
	if !ok {
		return false, goerrors.New("unknown policy", goerrors.CategoryNotFound).
			WithTextCode(TextCodeUnknownPolicy).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{"policy": policyName})
	}

	return policy.Allows(principal), nil
}

// Names returns registered policy names in registration order.
func (r *PolicyRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Default policy names.
const (
	PolicyDeleteRole = "DeleteRolePolicy"
	PolicyEditRole   = "EditRolePolicy"
)

// DefaultPolicies returns a registry preloaded with the role administration
// policies.
func DefaultPolicies() *PolicyRegistry {
	return NewPolicyRegistry().
		MustRegister(Policy{
			Name: PolicyDeleteRole,
			Requirements: []Requirement{
				RequireClaim(ClaimTypeDeleteRole, ClaimValueGranted),
				RequireRole("Admin"),
			},
		}).
		MustRegister(Policy{
			Name: PolicyEditRole,
			Requirements: []Requirement{
				RequireClaim(ClaimTypeEditRole, ClaimValueGranted),
			},
		})
}
