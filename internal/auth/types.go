package auth

import (
	"strings"
	"time"
)

// Organization is a tenant. Organizations may form a tree through ParentID.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ParentID    *string   `json:"parentId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Permission is a fine-grained capability identified as "resource:action".
type Permission struct {
	ID          string `json:"id"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

// Key returns the external identifier of the permission.
func (p Permission) Key() string {
	return p.Resource + ":" + p.Action
}

// Role groups permissions under a position in the level hierarchy.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Level       int          `json:"level"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// User is a member of exactly one organization holding exactly one role.
type User struct {
	ID                  string        `json:"id"`
	Email               string        `json:"email"`
	PasswordHash        string        `json:"-"`
	FirstName           string        `json:"firstName"`
	LastName            string        `json:"lastName"`
	RoleID              string        `json:"roleId"`
	OrganizationID      string        `json:"organizationId"`
	IsActive            bool          `json:"isActive"`
	LastLoginAt         *time.Time    `json:"lastLoginAt,omitempty"`
	FailedLoginAttempts int           `json:"failedLoginAttempts"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
	DeletedAt           *time.Time    `json:"-"`
	Role                *Role         `json:"role,omitempty"`
	Organization        *Organization `json:"organization,omitempty"`
}

// NormalizeEmail lower-cases and trims an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
