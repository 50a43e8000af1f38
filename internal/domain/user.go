package domain

import (
	"errors"
	"strings"
)

// Role enumerates who a user acts as.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleUser, RoleAgent}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, true
	case RoleAgent:
		return RoleAgent, true
	}
	return "", false
}

// IsAgent reports whether the role is agent.
func (r Role) IsAgent() bool { return r == RoleAgent }

// User is the domain model for accounts that sign in to the help desk.
// Role is fixed at registration.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Role         Role   `json:"role"`
}

// RecordID returns the user's id.
func (u User) RecordID() int64 { return u.ID }

// Validate rejects records that cannot have been written by this program.
func (u User) Validate() error {
	if u.ID <= 0 {
		return errors.New("user id must be positive")
	}
	if u.Username == "" || u.PasswordHash == "" {
		return errors.New("user record missing username or password hash")
	}
	if _, ok := ParseRole(string(u.Role)); !ok {
		return errors.New("user record has unknown role")
	}
	return nil
}
