package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Principal represents a user with the role, organization and permissions resolved.
type Principal struct {
	User         *User
	Role         *Role
	Organization *Organization
	Permissions  map[string]struct{}
}

// NewPrincipal constructs a principal with the role's permissions preloaded.
func NewPrincipal(user *User, role *Role, org *Organization) Principal {
	p := Principal{User: user, Role: role, Organization: org, Permissions: map[string]struct{}{}}
	if role != nil {
		for _, perm := range role.Permissions {
			p.Permissions[perm.Key()] = struct{}{}
		}
	}
	return p
}

// HasPermission reports whether the principal can execute action identified by key.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

// Level returns the role level, or zero when no role was resolved.
func (p Principal) Level() int {
	if p.Role == nil {
		return 0
	}
	return p.Role.Level
}

func (p Principal) UserID() string {
	if p.User == nil {
		return ""
	}
	return p.User.ID
}

func (p Principal) OrganizationID() string {
	if p.User == nil {
		return ""
	}
	return p.User.OrganizationID
}

// LevelError is returned when the role level is below an endpoint's minimum.
type LevelError struct {
	Required int
	Actual   int
}

func (e *LevelError) Error() string {
	return fmt.Sprintf("Required role level: %d (current: %d)", e.Required, e.Actual)
}

func (e *LevelError) Is(target error) bool { return target == ErrForbidden }

// PermissionError lists the permission strings the role lacks.
type PermissionError struct {
	Missing []string
}

func (e *PermissionError) Error() string {
	return "Insufficient permissions: missing " + strings.Join(e.Missing, ", ")
}

func (e *PermissionError) Is(target error) bool { return target == ErrForbidden }

// RequireLevel passes when min is undeclared (<= 0) or the principal's level reaches it.
func RequireLevel(p Principal, min int) error {
	if min <= 0 {
		return nil
	}
	if p.Role == nil {
		return fmt.Errorf("%w: Access denied", ErrForbidden)
	}
	if p.Role.Level < min {
		return &LevelError{Required: min, Actual: p.Role.Level}
	}
	return nil
}

// RequirePermissions passes only when every listed permission is held.
func RequirePermissions(p Principal, perms ...string) error {
	var missing []string
	for _, perm := range perms {
		if !p.HasPermission(perm) {
			missing = append(missing, perm)
		}
	}
	if len(missing) > 0 {
		return &PermissionError{Missing: missing}
	}
	return nil
}

// IsForbidden is a convenience for callers mapping errors to responses.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }
