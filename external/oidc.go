package external

import (
	"context"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// OIDCProvider validates provider ID tokens against the provider's JWKS
// endpoint and maps the standard claims into an Assertion.
type OIDCProvider struct {
	name     string
	issuer   string
	audience string
	keys     jwt.Keyfunc
}

type OIDCOption func(*OIDCProvider)

// WithOIDCKeyfunc replaces the JWKS-backed keyfunc, mainly for tests with
// locally generated keys.
func WithOIDCKeyfunc(keys jwt.Keyfunc) OIDCOption {
	return func(p *OIDCProvider) {
		if keys != nil {
			p.keys = keys
		}
	}
}

// NewOIDCProvider fetches the provider's JWK Set and keeps it refreshed in
// the background until ctx is cancelled.
func NewOIDCProvider(ctx context.Context, name, jwksURL, issuer, audience string, opts ...OIDCOption) (*OIDCProvider, error) {
	provider := &OIDCProvider{
		name:     name,
		issuer:   issuer,
		audience: audience,
	}

	for _, opt := range opts {
		opt(provider)
	}

	if provider.keys == nil {
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
			Ctx: ctx,
			RefreshErrorHandler: func(err error) {
				log.Printf("failed to do a background refresh of JWK set: %s", err)
			},
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  time.Minute * 5,
			RefreshTimeout:    time.Second * 10,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryExternal, "failed to fetch provider JWK set")
		}
		provider.keys = jwks.Keyfunc
	}

	return provider, nil
}

func (p *OIDCProvider) Name() string {
	return p.name
}

// ExchangeAssertion validates an ID token and extracts the subject, email
// and profile claims.
func (p *OIDCProvider) ExchangeAssertion(_ context.Context, raw string) (*Assertion, error) {
	claims := jwt.MapClaims{}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256", "HS256"}),
	}
	if p.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(p.audience))
	}

	token, err := jwt.ParseWithClaims(raw, claims, p.keys, parserOpts...)
	if err != nil || !token.Valid {
		return nil, ErrAssertionInvalid
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return nil, ErrAssertionInvalid
	}

	assertion := &Assertion{
		Provider:    p.name,
		ProviderKey: subject,
		Raw:         map[string]any(claims),
	}

	if email, ok := claims["email"].(string); ok {
		assertion.Email = email
	}
	if verified, ok := claims["email_verified"].(bool); ok {
		assertion.EmailVerified = verified
	}
	if name, ok := claims["name"].(string); ok {
		assertion.Name = name
	}

	return assertion, nil
}
