package model

import "time"

// Roles offered at registration.
var Roles = []string{"Analyst", "Manager", "Director", "Executive"}

// ExperienceLevels offered at registration.
var ExperienceLevels = []string{"0-2 years", "3-5 years", "6-10 years", "10+ years"}

// UserIdentity is the display-only view of the signed-in user. It has no
// bearing on scoring.
type UserIdentity struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	Company    string `json:"company"`
	Experience string `json:"experience"`
}

// Account is a registered user as held by the account store.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Company      string    `json:"company"`
	Role         string    `json:"role"`
	Experience   string    `json:"experience"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity returns the display identity for the account.
func (a Account) Identity() UserIdentity {
	return UserIdentity{
		Username:   a.Username,
		Role:       a.Role,
		Company:    a.Company,
		Experience: a.Experience,
	}
}
