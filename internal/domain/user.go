package domain

import "time"

// Role represents the user's permission level in the system.
type Role string

const (
	// RoleAdmin grants catalog and account administration.
	RoleAdmin Role = "admin"
	// RoleUser grants borrowing and returning.
	RoleUser Role = "user"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	if err := checkField("role", s, "oneof=admin user"); err != nil {
		return "", err
	}
	return Role(s), nil
}

// UserStatus represents the user's account status.
type UserStatus string

const (
	// UserStatusEnabled indicates the user can log in and borrow.
	UserStatusEnabled UserStatus = "enabled"
	// UserStatusDisabled indicates an administrator locked the account.
	UserStatusDisabled UserStatus = "disabled"
)

// ParseUserStatus validates an account status.
func ParseUserStatus(s string) (UserStatus, error) {
	if err := checkField("status", s, "oneof=enabled disabled"); err != nil {
		return "", err
	}
	return UserStatus(s), nil
}

// User is a library member account, keyed by email.
type User struct {
	Email        Email        `json:"email"`
	Username     Username     `json:"username"`
	PasswordHash string       `json:"password_hash,omitempty"` // filter from API responses
	StudentID    StudentID    `json:"sid"`
	Introduction Introduction `json:"introduction"`
	Age          Age          `json:"age"`
	Sex          Sex          `json:"sex"`
	Avatar       string       `json:"avatar"`
	Role         Role         `json:"role"`
	Status       UserStatus   `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsAdmin returns true if the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsEnabled returns true if the user can log in and borrow.
func (u *User) IsEnabled() bool {
	return u.Status == UserStatusEnabled
}
