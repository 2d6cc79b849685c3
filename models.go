package auth

import (
	"strings"
	"time"
)

// Account is the persisted storefront account
type Account struct {
	ID           string     `bson:"_id" json:"id"`
	Name         string     `bson:"name" json:"name"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password_hash" json:"-"`
	Role         Role       `bson:"role" json:"role"`
	CreatedAt    *time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt    *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Clone returns a shallow copy safe to hand out of a repository
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// TokenUser is the public projection of an Account. It is the only
// payload embedded in session tokens and returned to clients.
type TokenUser struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// NewTokenUser projects an account into its public claim
func NewTokenUser(a *Account) TokenUser {
	if a == nil {
		return TokenUser{}
	}
	return TokenUser{
		UserID: a.ID,
		Name:   a.Name,
		Role:   a.Role,
	}
}

// PublicAccount is an account without its password digest
type PublicAccount struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Public strips the password digest
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// NormalizeEmail lower cases and trims an email before writes and lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
