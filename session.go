package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionClaims is the signed payload of a principal session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Username string      `json:"username,omitempty"`
	Email    string      `json:"email,omitempty"`
	Roles    []string    `json:"roles,omitempty"`
	Grants   []ClaimPair `json:"grants,omitempty"`
}

// SessionMint signs and validates principal session tokens. Session tokens
// are separate from verification tokens: they use the raw signing key, carry
// the resolved principal, and expire on their own schedule.
type SessionMint struct {
	signingKey []byte
	duration   time.Duration
	extended   time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
	logger     Logger
}

// SessionMintOption customizes a SessionMint.
type SessionMintOption func(*SessionMint)

// WithSessionDurations sets the standard and remember-me durations.
func WithSessionDurations(standard, extended time.Duration) SessionMintOption {
	return func(m *SessionMint) {
		if standard > 0 {
			m.duration = standard
		}
		if extended > 0 {
			m.extended = extended
		}
	}
}

// WithSessionIssuer sets issuer and audience claims.
func WithSessionIssuer(issuer string, audience []string) SessionMintOption {
	return func(m *SessionMint) {
		m.issuer = issuer
		if len(audience) > 0 {
			m.audience = make(jwt.ClaimStrings, len(audience))
			copy(m.audience, audience)
		}
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(now func() time.Time) SessionMintOption {
	return func(m *SessionMint) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSessionLogger overrides the logger.
func WithSessionLogger(l Logger) SessionMintOption {
	return func(m *SessionMint) {
		m.logger = normalizeLogger(l)
	}
}

// NewSessionMint creates a mint with a 24h standard and 30 day extended
// session.
func NewSessionMint(signingKey []byte, opts ...SessionMintOption) *SessionMint {
	m := &SessionMint{
		signingKey: signingKey,
		duration:   24 * time.Hour,
		extended:   720 * time.Hour,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Sign mints a session token embedding the principal. The extended flag maps
// to the caller's remember-me choice.
func (m *SessionMint) Sign(principal *Principal, extended bool) (string, error) {
	if principal == nil {
		return "", goerrors.New("principal must not be nil", goerrors.CategoryInternal)
	}

	ttl := m.duration
	if extended {
		ttl = m.extended
	}

	now := m.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   principal.UserID,
			Audience:  m.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Username: principal.Username,
		Email:    principal.Email,
		Roles:    principal.Roles,
		Grants:   principal.Claims,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Validate parses a session token and returns its claims.
func (m *SessionMint) Validate(raw string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithTimeFunc(m.now))
	if m.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(m.issuer))
	}
	if len(m.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(m.audience[0]))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			m.logger.Error("session mint encountered unexpected signing method alg=%v", t.Header["alg"])
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return m.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "unable to decode session").
			WithCode(goerrors.CodeUnauthorized)
	}

	if !token.Valid {
		return nil, goerrors.New("unable to decode session", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	return claims, nil
}

// PrincipalFromClaims rebuilds the principal carried by validated claims.
func PrincipalFromClaims(claims *SessionClaims) *Principal {
	if claims == nil {
		return nil
	}
	return &Principal{
		UserID:   claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
		Roles:    claims.Roles,
		Claims:   claims.Grants,
	}
}
