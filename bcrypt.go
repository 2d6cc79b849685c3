package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies account passwords using bcrypt.
// The digest embeds salt and cost, so verification needs no extra state.
type PasswordHasher struct {
	cost int
}

var _ PasswordAuthenticator = (*PasswordHasher)(nil)

// NewPasswordHasher returns a hasher with the given work factor.
// Out of range costs fall back to the build default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return &PasswordHasher{cost: clampHashCost(cost)}
}

// Cost returns the configured work factor
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// HashPassword will generate a password hash
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(digest), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h *PasswordHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return WithMessage(ErrMismatchedHashAndPassword, "stored password hash is unusable")
	}
	return nil
}

// Verify is the boolean form of ComparePasswordAndHash
func (h *PasswordHasher) Verify(password, hash string) bool {
	return h.ComparePasswordAndHash(password, hash) == nil
}
