package identity

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Config carries every tunable the core exposes. Defaults mirror a fairly
// conservative deployment: 8 character passwords with 3 distinct characters,
// confirmed email required to sign in, 5 failed attempts before a 15 minute
// lockout, confirmation tokens good for 3 days and reset tokens for 5 hours.
type Config struct {
	SigningKey string `env:"IDENTITY_SIGNING_KEY"`

	PasswordMinLength      int `env:"IDENTITY_PASSWORD_MIN_LENGTH" envDefault:"8"`
	PasswordMinUniqueChars int `env:"IDENTITY_PASSWORD_MIN_UNIQUE_CHARS" envDefault:"3"`

	RequireConfirmedEmail bool `env:"IDENTITY_REQUIRE_CONFIRMED_EMAIL" envDefault:"true"`

	MaxFailedAttempts int           `env:"IDENTITY_LOCKOUT_MAX_ATTEMPTS" envDefault:"5"`
	LockoutSpan       time.Duration `env:"IDENTITY_LOCKOUT_SPAN" envDefault:"15m"`

	ConfirmationTokenLifespan time.Duration `env:"IDENTITY_CONFIRMATION_TOKEN_LIFESPAN" envDefault:"72h"`
	ResetTokenLifespan        time.Duration `env:"IDENTITY_RESET_TOKEN_LIFESPAN" envDefault:"5h"`

	SessionDuration         time.Duration `env:"IDENTITY_SESSION_DURATION" envDefault:"24h"`
	ExtendedSessionDuration time.Duration `env:"IDENTITY_EXTENDED_SESSION_DURATION" envDefault:"720h"`

	Issuer   string   `env:"IDENTITY_ISSUER" envDefault:"go-identity"`
	Audience []string `env:"IDENTITY_AUDIENCE" envSeparator:","`

	DefaultPhoneRegion string `env:"IDENTITY_DEFAULT_PHONE_REGION" envDefault:"US"`
}

// NewConfig returns a Config populated with defaults only.
func NewConfig(signingKey string) *Config {
	cfg := &Config{}
	applyConfigDefaults(cfg)
	cfg.SigningKey = signingKey
	return cfg
}

// LoadConfigFromEnv builds a Config from the process environment.
func LoadConfigFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse identity configuration from environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that would weaken the core's invariants.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.PasswordMinLength, validation.Min(1)),
		validation.Field(&c.PasswordMinUniqueChars, validation.Min(1)),
		validation.Field(&c.MaxFailedAttempts, validation.Min(1)),
		validation.Field(&c.LockoutSpan, validation.Required),
		validation.Field(&c.ConfirmationTokenLifespan, validation.Required),
		validation.Field(&c.ResetTokenLifespan, validation.Required),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid identity configuration")
	}

	if c.PasswordMinUniqueChars > c.PasswordMinLength {
		return goerrors.New("password unique character minimum cannot exceed the length minimum", goerrors.CategoryValidation)
	}

	return nil
}

// TokenLifespan resolves the lifespan for a verification token purpose.
func (c *Config) TokenLifespan(purpose TokenPurpose) time.Duration {
	switch purpose {
	case PurposePasswordReset:
		return c.ResetTokenLifespan
	default:
		return c.ConfirmationTokenLifespan
	}
}

func applyConfigDefaults(cfg *Config) {
	cfg.PasswordMinLength = 8
	cfg.PasswordMinUniqueChars = 3
	cfg.RequireConfirmedEmail = true
	cfg.MaxFailedAttempts = 5
	cfg.LockoutSpan = 15 * time.Minute
	cfg.ConfirmationTokenLifespan = 72 * time.Hour
	cfg.ResetTokenLifespan = 5 * time.Hour
	cfg.SessionDuration = 24 * time.Hour
	cfg.ExtendedSessionDuration = 720 * time.Hour
	cfg.Issuer = "go-identity"
	cfg.DefaultPhoneRegion = "US"
}
