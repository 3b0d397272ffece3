package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is one of the recognized roles.
func (r UserRole) Valid() bool {
	return r == UserRoleUser || r == UserRoleAdmin
}

type User struct {
	ID           int64
	Phone        string
	Name         string
	Surname      string
	Role         UserRole
	PasswordHash []byte
	PhotoIDs     []int64
	AppealID     *int64
	IsActive     bool
	CreatedAt    time.Time
}
