package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a platform role. Meeting authority (host, co-host) is per meeting and not a role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole maps a request value to a Role, defaulting to student for an empty string.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case "":
		return RoleStudent, true
	case RoleAdmin, RoleTeacher, RoleStudent:
		return Role(s), true
	}
	return "", false
}

// User represents a platform user.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Identity is the externally authenticated user reference carried by a realtime connection.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

// Identity returns the user's realtime identity.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.FullName, Email: u.Email}
}
