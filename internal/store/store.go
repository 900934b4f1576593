// Package store persists user accounts for the web front end. Accounts
// gate access to the UI only; they never influence scoring.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/churn-cli/internal/model"
)

// Sentinel errors shared by every backend.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Store defines the persistence interface for accounts.
type Store interface {
	CreateAccount(ctx context.Context, reg Registration) (*model.Account, error)
	Authenticate(ctx context.Context, email, password string) (*model.Account, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Registration is a sign-up request. Every field is required.
type Registration struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Username   string `json:"username"`
	Company    string `json:"company"`
	Role       string `json:"role"`
	Experience string `json:"experience"`
}

// Validate reports the first missing or out-of-domain field as a
// *model.ValidationError.
func (r Registration) Validate() error {
	required := []struct{ field, value string }{
		{"username", r.Username},
		{"email", r.Email},
		{"password", r.Password},
		{"company", r.Company},
		{"role", r.Role},
		{"experience", r.Experience},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &model.ValidationError{Field: f.field, Reason: "is required"}
		}
	}
	if !strings.Contains(r.Email, "@") {
		return &model.ValidationError{Field: "email", Reason: "must be an email address"}
	}
	if len(r.Password) > maxPasswordBytes {
		return &model.ValidationError{Field: "password", Reason: "must be at most 72 bytes"}
	}
	if !slices.Contains(model.Roles, r.Role) {
		return &model.ValidationError{Field: "role", Reason: "must be one of " + strings.Join(model.Roles, ", ")}
	}
	if !slices.Contains(model.ExperienceLevels, r.Experience) {
		return &model.ValidationError{Field: "experience", Reason: "must be one of " + strings.Join(model.ExperienceLevels, ", ")}
	}
	return nil
}

// Option configures a store backend.
type Option func(*options)

type options struct {
	bcryptCost int
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

func applyOptions(opts []Option) options {
	o := options{bcryptCost: DefaultBcryptCost}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// NormalizeEmail lower-cases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// newAccount validates reg and builds the row to insert.
func newAccount(reg Registration, cost int) (*model.Account, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	hash, err := HashPassword(reg.Password, cost)
	if err != nil {
		return nil, err
	}
	return &model.Account{
		ID:           uuid.New().String(),
		Email:        NormalizeEmail(reg.Email),
		Username:     strings.TrimSpace(reg.Username),
		Company:      strings.TrimSpace(reg.Company),
		Role:         reg.Role,
		Experience:   reg.Experience,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// verify checks a looked-up account against the supplied password.
func verify(acct *model.Account, password string) (*model.Account, error) {
	if acct == nil || !CheckPassword(acct.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

type scannable interface {
	Scan(dest ...any) error
}

const accountColumns = `id, email, username, company, role, experience, password_hash, created_at`

func scanAccount(row scannable) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.Email, &a.Username, &a.Company, &a.Role, &a.Experience, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
