package models

import "time"

// InternalUser represents a user account on the server.
type InternalUser struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Role         string    `json:"role"`
	Region       string    `json:"region,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role constants. Field agents capture evaluations, managers may override
// ratings, admins manage reference data and settings. Service identities
// are machine accounts (e.g. the sync agent).
const (
	RoleField   = "field"
	RoleManager = "manager"
	RoleAdmin   = "admin"
	RoleService = "service"
)

// roleTier orders the three human tiers. Service accounts sit at manager
// tier: they submit evaluations on behalf of field devices but may not
// administer settings.
var roleTier = map[string]int{
	RoleField:   1,
	RoleService: 2,
	RoleManager: 2,
	RoleAdmin:   3,
}

// RoleAtLeast reports whether role meets or exceeds the required tier.
// Unknown roles never qualify.
func RoleAtLeast(role, required string) bool {
	have, ok := roleTier[role]
	if !ok {
		return false
	}
	want, ok := roleTier[required]
	if !ok {
		return false
	}
	return have >= want
}

// UserKeyValue is a per-user preference entry.
type UserKeyValue struct {
	UserID string `json:"user_id"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}
