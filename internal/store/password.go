package store

import (
	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used unless WithBcryptCost overrides it.
const DefaultBcryptCost = bcrypt.DefaultCost

// bcrypt ignores input beyond this length.
const maxPasswordBytes = 72

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", eris.Wrap(err, "store: hash password")
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
