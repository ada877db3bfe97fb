package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"taskdesk.org/internal/auth"
)

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, user *auth.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if err := u.s.checkUserRefs(user); err != nil {
		return err
	}
	if u.s.emailTaken(user.ID, user.Email) {
		return fmt.Errorf("%w: email", auth.ErrConflict)
	}
	cp := *user
	cp.Role, cp.Organization = nil, nil
	u.s.users[user.ID] = &cp
	return nil
}

func (u userStore) Find(_ context.Context, id string) (*auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.liveUser(id)
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u.s.expandUser(user), nil
}

func (u userStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	email = auth.NormalizeEmail(email)
	for _, user := range u.s.users {
		if user.DeletedAt == nil && user.Email == email {
			return u.s.expandUser(user), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (u userStore) ListByOrg(_ context.Context, orgID string) ([]*auth.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	var out []*auth.User
	for _, user := range u.s.users {
		if user.DeletedAt == nil && user.OrganizationID == orgID {
			out = append(out, u.s.expandUser(user))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (u userStore) Update(_ context.Context, user *auth.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.liveUser(user.ID); !ok {
		return auth.ErrNotFound
	}
	if err := u.s.checkUserRefs(user); err != nil {
		return err
	}
	if u.s.emailTaken(user.ID, user.Email) {
		return fmt.Errorf("%w: email", auth.ErrConflict)
	}
	cp := *user
	cp.Role, cp.Organization = nil, nil
	u.s.users[user.ID] = &cp
	return nil
}

func (u userStore) RecordLogin(_ context.Context, id string, at time.Time) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.liveUser(id)
	if !ok {
		return auth.ErrNotFound
	}
	user.LastLoginAt = &at
	user.FailedLoginAttempts = 0
	return nil
}

func (u userStore) RecordFailedLogin(_ context.Context, id string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.liveUser(id)
	if !ok {
		return auth.ErrNotFound
	}
	user.FailedLoginAttempts++
	return nil
}

func (u userStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.liveUser(id)
	if !ok {
		return auth.ErrNotFound
	}
	user.DeletedAt = &at
	return nil
}

func (u userStore) Principal(_ context.Context, id string) (auth.Principal, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.liveUser(id)
	if !ok {
		return auth.Principal{}, auth.ErrNotFound
	}
	role, ok := u.s.roles[user.RoleID]
	if !ok {
		return auth.Principal{}, fmt.Errorf("%w: role %s", auth.ErrNotFound, user.RoleID)
	}
	org, ok := u.s.orgs[user.OrganizationID]
	if !ok {
		return auth.Principal{}, fmt.Errorf("%w: organization %s", auth.ErrNotFound, user.OrganizationID)
	}
	full := copyRole(role, true)
	orgCopy := *org
	userCopy := *user
	userCopy.Role = full
	userCopy.Organization = &orgCopy
	return auth.NewPrincipal(&userCopy, full, &orgCopy), nil
}

func (s *Store) liveUser(id string) (*auth.User, bool) {
	user, ok := s.users[id]
	if !ok || user.DeletedAt != nil {
		return nil, false
	}
	return user, true
}

func (s *Store) emailTaken(id, email string) bool {
	for _, other := range s.users {
		if other.ID != id && other.Email == email {
			return true
		}
	}
	return false
}

func (s *Store) checkUserRefs(user *auth.User) error {
	if _, ok := s.roles[user.RoleID]; !ok {
		return fmt.Errorf("%w: role %s", auth.ErrNotFound, user.RoleID)
	}
	if _, ok := s.orgs[user.OrganizationID]; !ok {
		return fmt.Errorf("%w: organization %s", auth.ErrNotFound, user.OrganizationID)
	}
	return nil
}

func (s *Store) expandUser(user *auth.User) *auth.User {
	cp := *user
	if role, ok := s.roles[user.RoleID]; ok {
		cp.Role = copyRole(role, false)
	}
	if org, ok := s.orgs[user.OrganizationID]; ok {
		orgCopy := *org
		cp.Organization = &orgCopy
	}
	return &cp
}
