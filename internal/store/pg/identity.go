package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/ids"
)

type orgStore struct{ db *sql.DB }

const orgColumns = `id, name, description, parent_id, created_at, updated_at`

func scanOrg(row scanner) (*auth.Organization, error) {
	var (
		org    auth.Organization
		parent sql.NullString
	)
	if err := row.Scan(&org.ID, &org.Name, &org.Description, &parent, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, err
	}
	org.ParentID = stringPtr(parent)
	return &org, nil
}

func (o orgStore) Create(ctx context.Context, org *auth.Organization) error {
	_, err := o.db.ExecContext(ctx, `
		insert into organizations (id, name, description, parent_id, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6)
	`, org.ID, org.Name, org.Description, nullString(org.ParentID), org.CreatedAt, org.UpdatedAt)
	return mapConstraint(err, "organization name")
}

func (o orgStore) Find(ctx context.Context, id string) (*auth.Organization, error) {
	if !ids.IsUUID(id) {
		return nil, auth.ErrNotFound
	}
	org, err := scanOrg(o.db.QueryRowContext(ctx, `select `+orgColumns+` from organizations where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return org, err
}

func (o orgStore) List(ctx context.Context) ([]*auth.Organization, error) {
	rows, err := o.db.QueryContext(ctx, `select `+orgColumns+` from organizations order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*auth.Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

func (o orgStore) Update(ctx context.Context, org *auth.Organization) error {
	res, err := o.db.ExecContext(ctx, `
		update organizations
		set name = $2, description = $3, parent_id = $4, updated_at = $5
		where id = $1
	`, org.ID, org.Name, org.Description, nullString(org.ParentID), org.UpdatedAt)
	return mapConstraint(expectOne(res, err), "organization name")
}

type roleStore struct{ db *sql.DB }

const roleQuery = `
	select r.id, r.name, r.description, r.level,
	       p.id, p.resource, p.action, p.description
	from roles r
	left join role_permissions rp on rp.role_id = r.id
	left join permissions p on p.id = rp.permission_id
`

func (r roleStore) Find(ctx context.Context, id string) (*auth.Role, error) {
	if !ids.IsUUID(id) {
		return nil, auth.ErrNotFound
	}
	roles, err := r.query(ctx, roleQuery+` where r.id = $1 order by p.resource, p.action`, id)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, auth.ErrNotFound
	}
	return roles[0], nil
}

func (r roleStore) List(ctx context.Context) ([]*auth.Role, error) {
	return r.query(ctx, roleQuery+` order by r.level desc, p.resource, p.action`)
}

// query folds the role x permission join back into roles, keeping row order.
func (r roleStore) query(ctx context.Context, q string, args ...any) ([]*auth.Role, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var (
		out   []*auth.Role
		index = map[string]*auth.Role{}
	)
	for rows.Next() {
		var (
			role                   auth.Role
			pid, pres, pact, pdesc sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.Level, &pid, &pres, &pact, &pdesc); err != nil {
			return nil, err
		}
		cur, ok := index[role.ID]
		if !ok {
			cur = &role
			index[role.ID] = cur
			out = append(out, cur)
		}
		if pid.Valid {
			cur.Permissions = append(cur.Permissions, auth.Permission{
				ID: pid.String, Resource: pres.String, Action: pact.String, Description: pdesc.String,
			})
		}
	}
	return out, rows.Err()
}

type userStore struct{ db *sql.DB }

const userQuery = `
	select u.id, u.email, u.password_hash, u.first_name, u.last_name, u.role_id, u.organization_id,
	       u.is_active, u.last_login_at, u.failed_login_attempts, u.created_at, u.updated_at,
	       r.name, r.description, r.level,
	       o.name, o.description, o.parent_id, o.created_at, o.updated_at
	from users u
	join roles r on r.id = u.role_id
	join organizations o on o.id = u.organization_id
	where u.deleted_at is null
`

func scanUser(row scanner) (*auth.User, error) {
	var (
		u         auth.User
		role      auth.Role
		org       auth.Organization
		lastLogin sql.NullTime
		parent    sql.NullString
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.RoleID, &u.OrganizationID,
		&u.IsActive, &lastLogin, &u.FailedLoginAttempts, &u.CreatedAt, &u.UpdatedAt,
		&role.Name, &role.Description, &role.Level,
		&org.Name, &org.Description, &parent, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.LastLoginAt = timePtr(lastLogin)
	role.ID = u.RoleID
	org.ID = u.OrganizationID
	org.ParentID = stringPtr(parent)
	u.Role = &role
	u.Organization = &org
	return &u, nil
}

func (u userStore) one(ctx context.Context, where string, arg any) (*auth.User, error) {
	user, err := scanUser(u.db.QueryRowContext(ctx, userQuery+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return user, err
}

func (u userStore) Create(ctx context.Context, user *auth.User) error {
	_, err := u.db.ExecContext(ctx, `
		insert into users (id, email, password_hash, first_name, last_name, role_id, organization_id,
		                   is_active, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.RoleID, user.OrganizationID,
		user.IsActive, user.CreatedAt, user.UpdatedAt)
	return mapConstraint(err, "email")
}

func (u userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	if !ids.IsUUID(id) {
		return nil, auth.ErrNotFound
	}
	return u.one(ctx, ` and u.id = $1`, id)
}

func (u userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return u.one(ctx, ` and u.email = $1`, auth.NormalizeEmail(email))
}

func (u userStore) ListByOrg(ctx context.Context, orgID string) ([]*auth.User, error) {
	rows, err := u.db.QueryContext(ctx, userQuery+` and u.organization_id = $1 order by u.created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (u userStore) Update(ctx context.Context, user *auth.User) error {
	res, err := u.db.ExecContext(ctx, `
		update users
		set email = $2, password_hash = $3, first_name = $4, last_name = $5,
		    role_id = $6, is_active = $7, updated_at = $8
		where id = $1 and deleted_at is null
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.RoleID, user.IsActive, user.UpdatedAt)
	return mapConstraint(expectOne(res, err), "email")
}

func (u userStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	res, err := u.db.ExecContext(ctx, `
		update users set last_login_at = $2, failed_login_attempts = 0
		where id = $1 and deleted_at is null
	`, id, at)
	return expectOne(res, err)
}

func (u userStore) RecordFailedLogin(ctx context.Context, id string) error {
	res, err := u.db.ExecContext(ctx, `
		update users set failed_login_attempts = failed_login_attempts + 1
		where id = $1 and deleted_at is null
	`, id)
	return expectOne(res, err)
}

func (u userStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := u.db.ExecContext(ctx, `update users set deleted_at = $2 where id = $1 and deleted_at is null`, id, at)
	return expectOne(res, err)
}

// Principal resolves the user with role and organization in one join, then
// fetches the role's permissions in a second query.
func (u userStore) Principal(ctx context.Context, id string) (auth.Principal, error) {
	user, err := u.Find(ctx, id)
	if err != nil {
		return auth.Principal{}, err
	}
	rows, err := u.db.QueryContext(ctx, `
		select p.id, p.resource, p.action, p.description
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.resource, p.action
	`, user.RoleID)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("load permissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.Description); err != nil {
			return auth.Principal{}, err
		}
		user.Role.Permissions = append(user.Role.Permissions, p)
	}
	if err := rows.Err(); err != nil {
		return auth.Principal{}, err
	}
	return auth.NewPrincipal(user, user.Role, user.Organization), nil
}
