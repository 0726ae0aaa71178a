package domain

import "time"

// Role represents the user's side of a tenancy.
type Role string

const (
	// RoleLandlord owns properties and issues invitations.
	RoleLandlord Role = "landlord"
	// RoleTenant receives invitations.
	RoleTenant Role = "tenant"
	// RoleAdmin may run maintenance operations such as reconciliation.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleLandlord, RoleTenant, RoleAdmin:
		return true
	}
	return false
}

// User is a directory entry. Users are provisioned out of band and are read-only to the core.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsAdmin returns true if the user may run administrative operations.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Name returns the display name, falling back to the email.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
