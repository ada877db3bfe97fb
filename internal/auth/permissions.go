package auth

// Built-in role levels. Higher levels pass every gate a lower level passes.
const (
	LevelViewer = 1
	LevelAdmin  = 2
	LevelOwner  = 3
)

// Permission strings checked by the HTTP layer.
const (
	PermTasksCreate = "tasks:create"
	PermTasksRead   = "tasks:read"
	PermTasksUpdate = "tasks:update"
	PermTasksDelete = "tasks:delete"

	PermOrganizationsCreate = "organizations:create"
	PermOrganizationsRead   = "organizations:read"
	PermOrganizationsUpdate = "organizations:update"
	PermOrganizationsDelete = "organizations:delete"

	PermUsersCreate = "users:create"
	PermUsersRead   = "users:read"
	PermUsersUpdate = "users:update"
	PermUsersDelete = "users:delete"
)

// BuiltinPermissions lists the catalog seeded on first start.
var BuiltinPermissions = []Permission{
	{Resource: "tasks", Action: "create", Description: "Create tasks"},
	{Resource: "tasks", Action: "read", Description: "Read tasks"},
	{Resource: "tasks", Action: "update", Description: "Update tasks"},
	{Resource: "tasks", Action: "delete", Description: "Delete tasks"},
	{Resource: "organizations", Action: "create", Description: "Create organizations"},
	{Resource: "organizations", Action: "read", Description: "Read organizations"},
	{Resource: "organizations", Action: "update", Description: "Update organizations"},
	{Resource: "organizations", Action: "delete", Description: "Delete organizations"},
	{Resource: "users", Action: "create", Description: "Create users"},
	{Resource: "users", Action: "read", Description: "Read users"},
	{Resource: "users", Action: "update", Description: "Update users"},
	{Resource: "users", Action: "delete", Description: "Delete users"},
}

// BuiltinRole describes a seeded role and the permission keys it holds.
type BuiltinRole struct {
	Name        string
	Description string
	Level       int
	Permissions []string
}

// BuiltinRoles mirrors ops/migrations seed data.
var BuiltinRoles = []BuiltinRole{
	{
		Name:        "owner",
		Description: "Full access to the organization",
		Level:       LevelOwner,
		Permissions: []string{
			PermTasksCreate, PermTasksRead, PermTasksUpdate, PermTasksDelete,
			PermOrganizationsCreate, PermOrganizationsRead, PermOrganizationsUpdate, PermOrganizationsDelete,
			PermUsersCreate, PermUsersRead, PermUsersUpdate, PermUsersDelete,
		},
	},
	{
		Name:        "admin",
		Description: "Manage tasks and users",
		Level:       LevelAdmin,
		Permissions: []string{
			PermTasksCreate, PermTasksRead, PermTasksUpdate, PermTasksDelete,
			PermUsersCreate, PermUsersRead, PermUsersUpdate,
		},
	},
	{
		Name:        "viewer",
		Description: "Read-only access to tasks",
		Level:       LevelViewer,
		Permissions: []string{PermTasksRead},
	},
}
