package external

import "context"

// Assertion is the provider-neutral result of validating an external
// identity callback. ProviderKey is the provider's stable subject
// identifier, never the email.
type Assertion struct {
	Provider      string
	ProviderKey   string
	Email         string
	EmailVerified bool
	Name          string
	Raw           map[string]any
}

// Provider validates raw callback material from one external identity
// provider and produces an Assertion.
type Provider interface {
	Name() string
	ExchangeAssertion(ctx context.Context, raw string) (*Assertion, error)
}
