package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdesk.org/internal/ids"
)

// CreateUserInput is the administrative user-creation payload.
type CreateUserInput struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	FirstName      string `json:"firstName" validate:"required"`
	LastName       string `json:"lastName" validate:"required"`
	RoleID         string `json:"roleId" validate:"required,uuid"`
	OrganizationID string `json:"organizationId" validate:"required,uuid"`
}

// UpdateUserInput holds optional user changes; nil fields are left untouched.
type UpdateUserInput struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=6"`
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=1"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,min=1"`
	RoleID    *string `json:"roleId,omitempty" validate:"omitempty,uuid"`
	IsActive  *bool   `json:"isActive,omitempty"`
}

// OrganizationInput creates an organization.
type OrganizationInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description"`
	ParentID    *string `json:"parentId,omitempty" validate:"omitempty,uuid"`
}

// OrganizationUpdate holds optional organization changes.
type OrganizationUpdate struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
	ParentID    *string `json:"parentId,omitempty" validate:"omitempty,uuid"`
}

// Directory manages users, roles and organizations on behalf of a principal.
type Directory struct {
	store Store
	now   func() time.Time
}

func NewDirectory(store Store) (*Directory, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	return &Directory{store: store, now: time.Now}, nil
}

// ListUsers returns the members of the actor's organization.
func (d *Directory) ListUsers(ctx context.Context, actor Principal) ([]*User, error) {
	return d.store.Users(ctx).ListByOrg(ctx, actor.OrganizationID())
}

// GetUser reveals cross-organization existence through ErrForbidden.
func (d *Directory) GetUser(ctx context.Context, actor Principal, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	user, err := d.store.Users(ctx).Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: User not found", ErrNotFound)
		}
		return nil, err
	}
	if user.OrganizationID != actor.OrganizationID() {
		return nil, fmt.Errorf("%w: Access denied", ErrForbidden)
	}
	return user, nil
}

func (d *Directory) CreateUser(ctx context.Context, actor Principal, in CreateUserInput) (*User, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	users := d.store.Users(ctx)
	if _, err := users.FindByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: Email already exists", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if actor.Level() < LevelOwner && in.OrganizationID != actor.OrganizationID() {
		return nil, fmt.Errorf("%w: Cannot create users in other organizations", ErrForbidden)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := d.now().UTC()
	user := &User{
		ID:             ids.New(),
		Email:          in.Email,
		PasswordHash:   hash,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		RoleID:         in.RoleID,
		OrganizationID: in.OrganizationID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: Email already exists", ErrConflict)
		}
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: role or organization does not exist", ErrInvalidInput)
		}
		return nil, err
	}
	return users.Find(ctx, user.ID)
}

func (d *Directory) UpdateUser(ctx context.Context, actor Principal, id string, upd UpdateUserInput) (*User, error) {
	if err := ValidateInput(upd); err != nil {
		return nil, err
	}
	user, err := d.GetUser(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	users := d.store.Users(ctx)
	if upd.Email != nil {
		email := NormalizeEmail(*upd.Email)
		if email != user.Email {
			if _, err := users.FindByEmail(ctx, email); err == nil {
				return nil, fmt.Errorf("%w: Email already exists", ErrConflict)
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			user.Email = email
		}
	}
	if upd.Password != nil {
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if upd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		user.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.RoleID != nil {
		user.RoleID = *upd.RoleID
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	user.UpdatedAt = d.now().UTC()
	if err := users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: Email already exists", ErrConflict)
		}
		return nil, err
	}
	return users.Find(ctx, user.ID)
}

// DeleteUser tombstones the user. Only owners may delete, and never themselves.
func (d *Directory) DeleteUser(ctx context.Context, actor Principal, id string) error {
	user, err := d.GetUser(ctx, actor, id)
	if err != nil {
		return err
	}
	if user.ID == actor.UserID() {
		return fmt.Errorf("%w: Cannot delete yourself", ErrForbidden)
	}
	if actor.Level() < LevelOwner {
		return fmt.Errorf("%w: Only Owner can delete users", ErrForbidden)
	}
	return d.store.Users(ctx).SoftDelete(ctx, user.ID, d.now().UTC())
}

func (d *Directory) ListRoles(ctx context.Context) ([]*Role, error) {
	return d.store.Roles(ctx).List(ctx)
}

// ListOrganizations returns the actor's organization and its descendants.
func (d *Directory) ListOrganizations(ctx context.Context, actor Principal) ([]*Organization, error) {
	all, err := d.store.Organizations(ctx).List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Organization, len(all))
	for _, org := range all {
		byID[org.ID] = org
	}
	root := actor.OrganizationID()
	visible := make([]*Organization, 0, len(all))
	for _, org := range all {
		if descendsFrom(byID, org.ID, root) {
			visible = append(visible, org)
		}
	}
	return visible, nil
}

// descendsFrom reports whether id is root or lies below it.
func descendsFrom(byID map[string]*Organization, id, root string) bool {
	seen := map[string]struct{}{}
	for id != "" {
		if id == root {
			return true
		}
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
		org, ok := byID[id]
		if !ok || org.ParentID == nil {
			return false
		}
		id = *org.ParentID
	}
	return false
}

// GetOrganization is limited to the actor's organization subtree. Organizations
// outside it are reported as ErrForbidden, like users.
func (d *Directory) GetOrganization(ctx context.Context, actor Principal, id string) (*Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	if !ids.IsUUID(id) {
		return nil, fmt.Errorf("%w: Organization not found", ErrNotFound)
	}
	org, err := d.store.Organizations(ctx).Find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: Organization not found", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	ok, err := d.inScope(ctx, actor, org.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: Access denied", ErrForbidden)
	}
	return org, nil
}

// CreateOrganization places the new organization under parentID, or under the
// actor's own organization when no parent is given.
func (d *Directory) CreateOrganization(ctx context.Context, actor Principal, in OrganizationInput) (*Organization, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	parentID := actor.OrganizationID()
	if in.ParentID != nil {
		parentID = *in.ParentID
	}
	if err := d.checkTarget(ctx, actor, parentID); err != nil {
		return nil, err
	}
	now := d.now().UTC()
	org := &Organization{
		ID:          ids.New(),
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		ParentID:    &parentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.store.Organizations(ctx).Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// UpdateOrganization applies changes. Reparenting must keep the tree acyclic and
// the organization inside the actor's subtree; the actor's own organization
// cannot be moved.
func (d *Directory) UpdateOrganization(ctx context.Context, actor Principal, id string, upd OrganizationUpdate) (*Organization, error) {
	if err := ValidateInput(upd); err != nil {
		return nil, err
	}
	org, err := d.GetOrganization(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
		}
		org.Name = name
	}
	if upd.Description != nil {
		org.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.ParentID != nil && (org.ParentID == nil || *org.ParentID != *upd.ParentID) {
		if org.ID == actor.OrganizationID() {
			return nil, fmt.Errorf("%w: Cannot move your own organization", ErrForbidden)
		}
		if err := d.checkTarget(ctx, actor, *upd.ParentID); err != nil {
			return nil, err
		}
		if err := d.checkParent(ctx, org.ID, *upd.ParentID); err != nil {
			return nil, err
		}
		parent := *upd.ParentID
		org.ParentID = &parent
	}
	org.UpdatedAt = d.now().UTC()
	if err := d.store.Organizations(ctx).Update(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// checkTarget validates a prospective parent: it must exist and lie in the
// actor's subtree.
func (d *Directory) checkTarget(ctx context.Context, actor Principal, parentID string) error {
	if _, err := d.store.Organizations(ctx).Find(ctx, parentID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: parent organization does not exist", ErrInvalidInput)
		}
		return err
	}
	ok, err := d.inScope(ctx, actor, parentID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: Access denied", ErrForbidden)
	}
	return nil
}

// inScope walks up from orgID looking for the actor's organization.
func (d *Directory) inScope(ctx context.Context, actor Principal, orgID string) (bool, error) {
	root := actor.OrganizationID()
	if root == "" {
		return false, nil
	}
	orgs := d.store.Organizations(ctx)
	seen := map[string]struct{}{}
	for cur := orgID; cur != ""; {
		if cur == root {
			return true, nil
		}
		if _, ok := seen[cur]; ok {
			return false, nil
		}
		seen[cur] = struct{}{}
		org, err := orgs.Find(ctx, cur)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if org.ParentID == nil {
			return false, nil
		}
		cur = *org.ParentID
	}
	return false, nil
}

// checkParent walks up from parentID and fails if it reaches orgID.
func (d *Directory) checkParent(ctx context.Context, orgID, parentID string) error {
	orgs := d.store.Organizations(ctx)
	seen := map[string]struct{}{}
	cur := parentID
	for cur != "" {
		if cur == orgID {
			return fmt.Errorf("%w: organization cannot be its own ancestor", ErrInvalidInput)
		}
		if _, ok := seen[cur]; ok {
			return fmt.Errorf("%w: organization tree already contains a cycle", ErrInvalidInput)
		}
		seen[cur] = struct{}{}
		parent, err := orgs.Find(ctx, cur)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: parent organization does not exist", ErrInvalidInput)
			}
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		cur = *parent.ParentID
	}
	return nil
}
