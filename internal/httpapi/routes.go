package httpapi

import (
	"net/http"

	"taskdesk.org/internal/auth"
)

// route is one row of the route table. Authenticated routes pass through
// authenticate, then the level gate, then the permission gate.
type route struct {
	method      string
	path        string
	public      bool
	rateLimited bool
	minLevel    int
	perms       []string
	handler     http.HandlerFunc
}

func (a *API) routes() []route {
	return []route{
		{method: http.MethodPost, path: "/auth/register", public: true, rateLimited: true, handler: a.register},
		{method: http.MethodPost, path: "/auth/login", public: true, rateLimited: true, handler: a.login},
		{method: http.MethodPost, path: "/auth/logout", handler: a.logout},
		{method: http.MethodGet, path: "/auth/me", handler: a.me},

		{method: http.MethodGet, path: "/tasks", perms: []string{auth.PermTasksRead}, handler: a.listTasks},
		{method: http.MethodPost, path: "/tasks", perms: []string{auth.PermTasksCreate}, handler: a.createTask},
		{method: http.MethodGet, path: "/tasks/{id}", perms: []string{auth.PermTasksRead}, handler: a.getTask},
		{method: http.MethodPut, path: "/tasks/{id}", perms: []string{auth.PermTasksUpdate}, handler: a.updateTask},
		{method: http.MethodDelete, path: "/tasks/{id}", perms: []string{auth.PermTasksDelete}, handler: a.deleteTask},

		{method: http.MethodGet, path: "/users", perms: []string{auth.PermUsersRead}, handler: a.listUsers},
		{method: http.MethodPost, path: "/users", perms: []string{auth.PermUsersCreate}, handler: a.createUser},
		{method: http.MethodGet, path: "/users/{id}", perms: []string{auth.PermUsersRead}, handler: a.getUser},
		{method: http.MethodPut, path: "/users/{id}", perms: []string{auth.PermUsersUpdate}, handler: a.updateUser},
		{method: http.MethodDelete, path: "/users/{id}", perms: []string{auth.PermUsersDelete}, handler: a.deleteUser},

		{method: http.MethodGet, path: "/roles", handler: a.listRoles},

		{method: http.MethodGet, path: "/organizations", perms: []string{auth.PermOrganizationsRead}, handler: a.listOrganizations},
		{method: http.MethodPost, path: "/organizations", perms: []string{auth.PermOrganizationsCreate}, handler: a.createOrganization},
		{method: http.MethodGet, path: "/organizations/{id}", perms: []string{auth.PermOrganizationsRead}, handler: a.getOrganization},
		{method: http.MethodPut, path: "/organizations/{id}", perms: []string{auth.PermOrganizationsUpdate}, handler: a.updateOrganization},

		{method: http.MethodGet, path: "/audit-logs", minLevel: auth.LevelAdmin, handler: a.listAuditLogs},
		{method: http.MethodGet, path: "/audit-logs/stream", minLevel: auth.LevelAdmin, handler: a.streamAuditLogs},

		{method: http.MethodGet, path: "/docs", public: true, handler: a.Docs},
		{method: http.MethodGet, path: "/docs/openapi.yaml", public: true, handler: a.OpenAPISpec},
	}
}

func (a *API) wrap(rt route) http.Handler {
	var h http.Handler = rt.handler
	if !rt.public {
		h = a.authenticate(guard(rt.minLevel, rt.perms, h))
	}
	if rt.rateLimited {
		h = a.limiter.Middleware(h)
	}
	return h
}
