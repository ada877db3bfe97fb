package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk.org/internal/auth"
)

func (f fixture) principal(t *testing.T, userID string) auth.Principal {
	t.Helper()
	p, err := f.svc.Principal(context.Background(), userID)
	require.NoError(t, err)
	return p
}

func (f fixture) createUser(t *testing.T, actor auth.Principal, email, role, org string) *auth.User {
	t.Helper()
	u, err := f.dir.CreateUser(context.Background(), actor, auth.CreateUserInput{
		Email: email, Password: "secret1", FirstName: "A", LastName: "B",
		RoleID: f.seed.RoleIDs[role], OrganizationID: org,
	})
	require.NoError(t, err)
	return u
}

func TestDirectoryUserRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.principal(t, f.seed.AdminUserID)

	other, err := f.dir.CreateOrganization(ctx, owner, auth.OrganizationInput{Name: "Branch", ParentID: &f.seed.RootOrganizationID})
	require.NoError(t, err)

	admin := f.principal(t, f.createUser(t, owner, "admin2@example.com", "admin", f.seed.RootOrganizationID).ID)
	foreign := f.createUser(t, owner, "far@example.com", "viewer", other.ID)

	_, err = f.dir.CreateUser(ctx, admin, auth.CreateUserInput{
		Email: "x@example.com", Password: "secret1", FirstName: "X", LastName: "Y",
		RoleID: f.seed.RoleIDs["viewer"], OrganizationID: other.ID,
	})
	assert.ErrorIs(t, err, auth.ErrForbidden, "admins cannot create users in other organizations")

	_, err = f.dir.CreateUser(ctx, owner, auth.CreateUserInput{
		Email: "admin@example.com", Password: "secret1", FirstName: "X", LastName: "Y",
		RoleID: f.seed.RoleIDs["viewer"], OrganizationID: f.seed.RootOrganizationID,
	})
	assert.ErrorIs(t, err, auth.ErrConflict)

	_, err = f.dir.GetUser(ctx, admin, foreign.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden, "cross-org user lookup reveals existence")
	_, err = f.dir.GetUser(ctx, admin, "3fa85f64-5717-4562-b3fc-2c963f66afa6")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	list, err := f.dir.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, u := range list {
		assert.Equal(t, f.seed.RootOrganizationID, u.OrganizationID)
		require.NotNil(t, u.Role)
	}

	viewer := f.createUser(t, owner, "viewer@example.com", "viewer", f.seed.RootOrganizationID)
	assert.ErrorIs(t, f.dir.DeleteUser(ctx, admin, viewer.ID), auth.ErrForbidden, "only owners delete")
	assert.ErrorIs(t, f.dir.DeleteUser(ctx, owner, owner.UserID()), auth.ErrForbidden, "no self deletion")
	require.NoError(t, f.dir.DeleteUser(ctx, owner, viewer.ID))
	_, err = f.dir.GetUser(ctx, owner, viewer.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestDirectoryUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.principal(t, f.seed.AdminUserID)
	u := f.createUser(t, owner, "update@example.com", "viewer", f.seed.RootOrganizationID)

	taken := "admin@example.com"
	_, err := f.dir.UpdateUser(ctx, owner, u.ID, auth.UpdateUserInput{Email: &taken})
	assert.ErrorIs(t, err, auth.ErrConflict)

	name := "Renamed"
	pw := "newpass1"
	updated, err := f.dir.UpdateUser(ctx, owner, u.ID, auth.UpdateUserInput{FirstName: &name, Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.FirstName)

	_, err = f.svc.Login(ctx, auth.LoginInput{Email: "update@example.com", Password: "newpass1"})
	assert.NoError(t, err)
}

func TestDirectoryOrganizationTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.principal(t, f.seed.AdminUserID)
	root := f.seed.RootOrganizationID

	child, err := f.dir.CreateOrganization(ctx, owner, auth.OrganizationInput{Name: "Child", ParentID: &root})
	require.NoError(t, err)
	grandchild, err := f.dir.CreateOrganization(ctx, owner, auth.OrganizationInput{Name: "Grandchild", ParentID: &child.ID})
	require.NoError(t, err)

	_, err = f.dir.UpdateOrganization(ctx, owner, child.ID, auth.OrganizationUpdate{ParentID: &grandchild.ID})
	assert.ErrorIs(t, err, auth.ErrInvalidInput, "reparenting under a descendant creates a cycle")
	_, err = f.dir.UpdateOrganization(ctx, owner, child.ID, auth.OrganizationUpdate{ParentID: &child.ID})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
	_, err = f.dir.UpdateOrganization(ctx, owner, root, auth.OrganizationUpdate{ParentID: &grandchild.ID})
	assert.ErrorIs(t, err, auth.ErrForbidden, "own organization cannot be moved")

	moved, err := f.dir.UpdateOrganization(ctx, owner, grandchild.ID, auth.OrganizationUpdate{ParentID: &root})
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, root, *moved.ParentID)

	renamed := "Root Renamed"
	updated, err := f.dir.UpdateOrganization(ctx, owner, root, auth.OrganizationUpdate{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, renamed, updated.Name)

	missing := "3fa85f64-5717-4562-b3fc-2c963f66afa6"
	_, err = f.dir.CreateOrganization(ctx, owner, auth.OrganizationInput{Name: "Orphan", ParentID: &missing})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	_, err = f.dir.CreateOrganization(ctx, owner, auth.OrganizationInput{Name: "Child"})
	assert.ErrorIs(t, err, auth.ErrConflict)

	team, err := f.dir.CreateOrganization(ctx, owner, auth.OrganizationInput{Name: "Team"})
	require.NoError(t, err)
	require.NotNil(t, team.ParentID)
	assert.Equal(t, root, *team.ParentID, "parent defaults to the actor's organization")

	_, err = f.dir.GetOrganization(ctx, owner, "not-a-uuid")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	roles, err := f.dir.ListRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, []int{roles[0].Level, roles[1].Level, roles[2].Level})
}

func TestDirectoryOrganizationScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.principal(t, f.seed.AdminUserID)
	root := f.seed.RootOrganizationID

	tenant := &auth.Organization{ID: "8d3c1a5e-4f61-4c0e-9d55-0b8f5b1e2a77", Name: "OtherTenant"}
	require.NoError(t, f.store.Organizations(ctx).Create(ctx, tenant))
	outsider := f.principal(t, f.createUser(t, owner, "outsider@example.com", "owner", tenant.ID).ID)

	_, err := f.dir.GetOrganization(ctx, outsider, root)
	assert.ErrorIs(t, err, auth.ErrForbidden)
	name := "pwned"
	_, err = f.dir.UpdateOrganization(ctx, outsider, root, auth.OrganizationUpdate{Name: &name})
	assert.ErrorIs(t, err, auth.ErrForbidden)
	_, err = f.dir.CreateOrganization(ctx, outsider, auth.OrganizationInput{Name: "Implant", ParentID: &root})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	org, err := f.dir.GetOrganization(ctx, owner, root)
	require.NoError(t, err)
	assert.NotEqual(t, name, org.Name)

	branch, err := f.dir.CreateOrganization(ctx, outsider, auth.OrganizationInput{Name: "Tenant Branch"})
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, *branch.ParentID)

	_, err = f.dir.GetOrganization(ctx, owner, branch.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden, "tenant trees are disjoint")
	_, err = f.dir.UpdateOrganization(ctx, outsider, branch.ID, auth.OrganizationUpdate{ParentID: &root})
	assert.ErrorIs(t, err, auth.ErrForbidden, "cannot move into a foreign tree")

	visible, err := f.dir.ListOrganizations(ctx, outsider)
	require.NoError(t, err)
	names := make([]string, 0, len(visible))
	for _, o := range visible {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"OtherTenant", "Tenant Branch"}, names)
}
