// Package memory keeps every store in process memory. It backs tests and
// runs without a database DSN.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taskdesk.org/internal/audit"
	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/ids"
	"taskdesk.org/internal/tasks"
)

// Store implements auth.Store and exposes task and audit views over shared state.
type Store struct {
	mu    sync.RWMutex
	orgs  map[string]*auth.Organization
	users map[string]*auth.User
	roles map[string]*auth.Role
	tasks map[string]*tasks.Task
	audit []*audit.Entry
}

func New() *Store {
	return &Store{
		orgs:  make(map[string]*auth.Organization),
		users: make(map[string]*auth.User),
		roles: make(map[string]*auth.Role),
		tasks: make(map[string]*tasks.Task),
	}
}

func (s *Store) Organizations(context.Context) auth.OrganizationStore { return orgStore{s} }
func (s *Store) Users(context.Context) auth.UserStore                 { return userStore{s} }
func (s *Store) Roles(context.Context) auth.RoleStore                 { return roleStore{s} }

// Tasks returns the task store view.
func (s *Store) Tasks() tasks.Store { return taskStore{s} }

// Audit returns the audit store view.
func (s *Store) Audit() audit.Store { return auditStore{s} }

// Seeded identifies rows created by Seed.
type Seeded struct {
	RootOrganizationID string
	AdminUserID        string
	RoleIDs            map[string]string
}

// Seed installs the built-in roles, the root organization and the admin account.
func (s *Store) Seed(adminEmail, adminPassword string) (Seeded, error) {
	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return Seeded{}, err
	}
	perms := make(map[string]auth.Permission, len(auth.BuiltinPermissions))
	for _, p := range auth.BuiltinPermissions {
		p.ID = ids.New()
		perms[p.Key()] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := Seeded{RoleIDs: map[string]string{}}
	now := time.Now().UTC()
	for _, br := range auth.BuiltinRoles {
		role := &auth.Role{ID: ids.New(), Name: br.Name, Description: br.Description, Level: br.Level}
		for _, key := range br.Permissions {
			role.Permissions = append(role.Permissions, perms[key])
		}
		s.roles[role.ID] = role
		out.RoleIDs[br.Name] = role.ID
	}
	root := &auth.Organization{ID: ids.New(), Name: "Root Organization", Description: "Top-level organization", CreatedAt: now, UpdatedAt: now}
	s.orgs[root.ID] = root
	out.RootOrganizationID = root.ID

	admin := &auth.User{
		ID:             ids.New(),
		Email:          auth.NormalizeEmail(adminEmail),
		PasswordHash:   hash,
		FirstName:      "Admin",
		LastName:       "User",
		RoleID:         out.RoleIDs["owner"],
		OrganizationID: root.ID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.users[admin.ID] = admin
	out.AdminUserID = admin.ID
	return out, nil
}

// PutRole inserts or replaces a role.
func (s *Store) PutRole(role auth.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := role
	cp.Permissions = append([]auth.Permission(nil), role.Permissions...)
	s.roles[role.ID] = &cp
}

type orgStore struct{ s *Store }

func (o orgStore) Create(_ context.Context, org *auth.Organization) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if err := o.s.checkOrgName(org.ID, org.Name); err != nil {
		return err
	}
	if org.ParentID != nil {
		if _, ok := o.s.orgs[*org.ParentID]; !ok {
			return fmt.Errorf("%w: parent organization", auth.ErrNotFound)
		}
	}
	cp := *org
	o.s.orgs[org.ID] = &cp
	return nil
}

func (o orgStore) Find(_ context.Context, id string) (*auth.Organization, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	org, ok := o.s.orgs[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (o orgStore) List(context.Context) ([]*auth.Organization, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	out := make([]*auth.Organization, 0, len(o.s.orgs))
	for _, org := range o.s.orgs {
		cp := *org
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (o orgStore) Update(_ context.Context, org *auth.Organization) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if _, ok := o.s.orgs[org.ID]; !ok {
		return auth.ErrNotFound
	}
	if err := o.s.checkOrgName(org.ID, org.Name); err != nil {
		return err
	}
	cp := *org
	o.s.orgs[org.ID] = &cp
	return nil
}

func (s *Store) checkOrgName(id, name string) error {
	for _, existing := range s.orgs {
		if existing.ID != id && strings.EqualFold(existing.Name, name) {
			return fmt.Errorf("%w: organization name", auth.ErrConflict)
		}
	}
	return nil
}

type roleStore struct{ s *Store }

func (r roleStore) Find(_ context.Context, id string) (*auth.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return copyRole(role, true), nil
}

func (r roleStore) List(context.Context) ([]*auth.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*auth.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		out = append(out, copyRole(role, true))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level > out[j].Level })
	return out, nil
}

func copyRole(role *auth.Role, withPerms bool) *auth.Role {
	cp := *role
	cp.Permissions = nil
	if withPerms {
		cp.Permissions = append([]auth.Permission(nil), role.Permissions...)
	}
	return &cp
}
