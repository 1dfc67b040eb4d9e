package identity

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// BcryptAuthenticator is the default PasswordAuthenticator.
type BcryptAuthenticator struct{}

func (BcryptAuthenticator) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

func (BcryptAuthenticator) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

// ValidatePassword enforces the account password policy: minimum length and
// minimum number of distinct characters. Violations are aggregated into one
// validation error so the caller can show every problem at once, and nothing
// is mutated when validation fails.
func ValidatePassword(password string, minLength, minUnique int) error {
	var problems []string

	if len(password) < minLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters long", minLength))
	}

	if countDistinctChars(password) < minUnique {
		problems = append(problems, fmt.Sprintf("password must use at least %d different characters", minUnique))
	}

	if len(problems) == 0 {
		return nil
	}

	return goerrors.New("password does not meet the account policy", goerrors.CategoryValidation).
		WithTextCode(TextCodePasswordPolicy).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"violations": problems})
}

func countDistinctChars(s string) int {
	seen := map[rune]struct{}{}
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
