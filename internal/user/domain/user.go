package domain

import (
	"errors"
	"strings"
	"time"
)

// User is an account that can log in and borrow assets.
type User struct {
	ID           string
	Username     string
	Name         string
	PasswordHash string
	Role         Role
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// CanLogin reports whether the account may authenticate.
func (u *User) CanLogin() bool { return u != nil && u.Status == UserStatusActive }

// Validate validates the user for persistence and fills defaults for role and status.
// Returns an error describing the first validation failure.
func (u *User) Validate() error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	if u.Role != RoleAdmin && u.Role != RoleMember {
		return errors.New("unknown role")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
