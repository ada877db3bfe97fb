package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Organizations(ctx context.Context) OrganizationStore
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
}

// OrganizationStore manages organizations. Names are unique.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
	Update(ctx context.Context, org *Organization) error
}

// UserStore manages users. Tombstoned rows are invisible to every method.
// Find and ListByOrg populate User.Role (without permissions) and User.Organization.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByOrg(ctx context.Context, orgID string) ([]*User, error)
	Update(ctx context.Context, u *User) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	RecordFailedLogin(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	// Principal loads the user with its role permissions and organization in one fetch.
	Principal(ctx context.Context, id string) (Principal, error)
}

// RoleStore exposes the role catalog with permissions attached.
type RoleStore interface {
	Find(ctx context.Context, id string) (*Role, error)
	// List returns roles ordered by level, highest first.
	List(ctx context.Context) ([]*Role, error)
}
