// Package identity provides the account and access-control core shared by
// downstream applications: user accounts with confirmation and lockout state,
// stateless purpose-bound verification tokens, password sign-in, external
// identity linking, whole-set role/claim management, and a static policy
// evaluator.
//
// Verification tokens:
//   - Tokens are derived from the user's security stamp, so rotating the stamp
//     (password change, email change, link-set change) invalidates every
//     outstanding token without a revocation table. Do not persist issued
//     tokens; validity is recomputed at verification time.
//
// Lockout:
//   - Failed sign-in attempts are tracked per account in the user row. The
//     counter bump and the threshold check happen in a single statement so
//     concurrent failures cannot under-count past the limit.
//
// Policies:
//   - A PolicyRegistry maps policy names to conjunctions of role and claim
//     requirements. Evaluation is pure; registering a new policy requires no
//     evaluator changes.
package identity
