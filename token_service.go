package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenPurpose names a verification token family. Each purpose carries its
// own lifespan so e.g. confirmation links can outlive reset links.
type TokenPurpose string

const (
	PurposeEmailConfirmation TokenPurpose = "email_confirmation"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// VerificationClaims is the signed payload of a verification token. The
// security stamp is never embedded; it only participates in key derivation.
type VerificationClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"prp"`
}

// VerificationTokenService issues and validates stateless, purpose-bound
// tokens. The signing key is derived per (user, stamp, purpose) so a stamp
// rotation invalidates every outstanding token for that user, and a stamp
// mismatch is indistinguishable from a forged signature.
type VerificationTokenService struct {
	secret    []byte
	lifespans map[TokenPurpose]time.Duration
	now       func() time.Time
	logger    Logger
}

// VerificationTokenOption customizes the token service.
type VerificationTokenOption func(*VerificationTokenService)

// WithTokenLifespan overrides the lifespan for one purpose.
func WithTokenLifespan(purpose TokenPurpose, d time.Duration) VerificationTokenOption {
	return func(s *VerificationTokenService) {
		if d > 0 {
			s.lifespans[purpose] = d
		}
	}
}

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(now func() time.Time) VerificationTokenOption {
	return func(s *VerificationTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenLogger overrides the logger.
func WithTokenLogger(l Logger) VerificationTokenOption {
	return func(s *VerificationTokenService) {
		s.logger = normalizeLogger(l)
	}
}

// NewVerificationTokenService creates a token service with the default
// lifespans (confirmation 72h, reset 5h).
func NewVerificationTokenService(secret []byte, opts ...VerificationTokenOption) *VerificationTokenService {
	s := &VerificationTokenService{
		secret: secret,
		lifespans: map[TokenPurpose]time.Duration{
			PurposeEmailConfirmation: 72 * time.Hour,
			PurposePasswordReset:     5 * time.Hour,
		},
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// IssueToken mints a token bound to the user's current security stamp and the
// given purpose. No state is recorded anywhere.
func (s *VerificationTokenService) IssueToken(user *User, purpose TokenPurpose) (string, error) {
	if user == nil {
		return "", ErrIdentityNotFound
	}

	if _, ok := s.lifespans[purpose]; !ok {
		return "", goerrors.New("unknown verification token purpose", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": string(purpose)})
	}

	claims := &VerificationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID.String(),
			IssuedAt: jwt.NewNumericDate(s.now()),
			ID:       uuid.NewString(),
		},
		Purpose: string(purpose),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.deriveKey(user, purpose))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign verification token")
	}

	return signed, nil
}

// ValidateToken recomputes validity against the user's current stamp. It
// returns ErrInvalidToken for signature, subject, purpose, or stamp problems
// and ErrTokenExpired for a well-signed token past its purpose lifespan.
func (s *VerificationTokenService) ValidateToken(user *User, purpose TokenPurpose, raw string) error {
	if user == nil || raw == "" {
		return ErrInvalidToken
	}

	lifespan, ok := s.lifespans[purpose]
	if !ok {
		return ErrInvalidToken
	}

	claims := &VerificationClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.deriveKey(user, purpose), nil
	})

	if err != nil || !token.Valid {
		s.logger.Debug("verification token rejected: %v", err)
		return ErrInvalidToken
	}

	if claims.Purpose != string(purpose) || claims.RegisteredClaims.Subject != user.ID.String() {
		return ErrInvalidToken
	}

	if claims.IssuedAt == nil {
		return ErrInvalidToken
	}

	if IsOutsideThresholdPeriod(claims.IssuedAt.Time, s.now(), lifespan) {
		return ErrTokenExpired
	}

	return nil
}

// deriveKey binds the signing key to the user identity, their current stamp
// and the token purpose. HMAC verification inside the JWT library compares in
// constant time.
func (s *VerificationTokenService) deriveKey(user *User, purpose TokenPurpose) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(user.ID.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(user.SecurityStamp))
	mac.Write([]byte{0})
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}
