package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	City       string `json:"city"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User *User
	// ConfirmationToken must reach the user out of band, it is never
	// valid as a session credential.
	ConfirmationToken string
	Success           bool
}

type RegisterUserHandler struct {
	repo              RepositoryManager
	tokens            *VerificationTokenService
	passwordMinLength int
	passwordMinUnique int
	phoneRegion       string
	logger            Logger
	activitySink      ActivitySink
}

type RegisterUserOption func(*RegisterUserHandler)

func WithRegisterPasswordPolicy(minLength, minUnique int) RegisterUserOption {
	return func(h *RegisterUserHandler) {
		if minLength > 0 {
			h.passwordMinLength = minLength
		}
		if minUnique > 0 {
			h.passwordMinUnique = minUnique
		}
	}
}

func WithRegisterPhoneRegion(region string) RegisterUserOption {
	return func(h *RegisterUserHandler) {
		if region != "" {
			h.phoneRegion = region
		}
	}
}

func WithRegisterLogger(l Logger) RegisterUserOption {
	return func(h *RegisterUserHandler) {
		h.logger = normalizeLogger(l)
	}
}

func WithRegisterActivitySink(sink ActivitySink) RegisterUserOption {
	return func(h *RegisterUserHandler) {
		h.activitySink = normalizeActivitySink(sink)
	}
}

func NewRegisterUserHandler(repo RepositoryManager, tokens *VerificationTokenService, opts ...RegisterUserOption) *RegisterUserHandler {
	handler := &RegisterUserHandler{
		repo:              repo,
		tokens:            tokens,
		passwordMinLength: 8,
		passwordMinUnique: 3,
		phoneRegion:       "US",
		logger:            &defLogger{},
		activitySink:      &noopActivitySink{},
	}

	for _, opt := range opts {
		opt(handler)
	}

	return handler
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if err := h.validate(event); err != nil {
		return err
	}

	user := &User{}
	resp := &RegisterUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = strings.ToLower(strings.TrimSpace(event.Email))
		user.Phone = h.normalizePhone(event.Phone)
		user.City = event.City
		user.Username = getUsername(event.Username, user.Email)
		if event.UseHashid {
			if id, err := hashid.NewUUID(user.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	token, err := h.tokens.IssueToken(user, PurposeEmailConfirmation)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue confirmation token")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventRegistered,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"email": user.Email},
	})

	resp.User = user
	resp.ConfirmationToken = token
	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RegisterUserHandler) validate(event RegisterUserMessage) error {
	err := validation.Errors{
		"email": validation.Validate(event.Email,
			validation.Required,
			is.Email,
		),
	}.Filter()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := ValidatePassword(event.Password, h.passwordMinLength, h.passwordMinUnique); err != nil {
		return err
	}

	if event.Phone != "" {
		parsed, err := phonenumbers.Parse(event.Phone, h.phoneRegion)
		if err != nil || !phonenumbers.IsValidNumber(parsed) {
			return goerrors.New("invalid phone number", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest).
				WithMetadata(map[string]any{"phone": event.Phone})
		}
	}

	return nil
}

func (h *RegisterUserHandler) normalizePhone(phone string) string {
	if phone == "" {
		return ""
	}
	parsed, err := phonenumbers.Parse(phone, h.phoneRegion)
	if err != nil {
		return phone
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
