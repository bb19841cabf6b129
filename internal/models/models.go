package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// ValidRole reports whether role belongs to the closed set of user roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"nom"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Credentials is the only projection of a user that carries the password hash.
type Credentials struct {
	User         User
	PasswordHash string // bcrypt
}

// AuthUser is what the auth middleware attaches to an authenticated request.
type AuthUser struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"nom"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

func (u User) AuthUser() AuthUser {
	return AuthUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}
