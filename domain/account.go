package domain

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Account represents an end-user identity. Accounts only matter to the
// user-bound grants; client_credentials never touches them.
//
//nolint:tagliatelle
type Account struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	Email        string    `bson:"email" json:"email"`
	Enabled      bool      `bson:"enabled" json:"enabled"`
	Deleted      bool      `bson:"deleted,omitempty" json:"deleted,omitempty"`
	Scope        []string  `bson:"scope,omitempty" json:"scope,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// VerifyPassword reports whether the plaintext password matches the
// account's bcrypt hash.
func (a *Account) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

// HashPassword hashes a plaintext password for storage on an account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}
