package model

import "time"

const (
	RoleStudent = "student"
	RoleParent  = "parent"
)

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Role             string    `json:"role"`
	FamilyCode       string    `json:"family_code,omitempty"`
	LinkedFamilyCode string    `json:"linked_family_code,omitempty"`
	PasswordHash     string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsStudent reports whether the user owns a balance.
func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}
