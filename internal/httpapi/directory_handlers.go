package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"taskdesk.org/internal/auth"
)

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	users, err := a.directory.ListUsers(r.Context(), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if users == nil {
		users = []*auth.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	user, err := a.directory.GetUser(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var req auth.CreateUserInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.directory.CreateUser(r.Context(), p, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/users/"+user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var req auth.UpdateUserInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.directory.UpdateUser(r.Context(), p, mux.Vars(r)["id"], req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	if err := a.directory.DeleteUser(r.Context(), p, mux.Vars(r)["id"]); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.directory.ListRoles(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if roles == nil {
		roles = []*auth.Role{}
	}
	writeJSON(w, http.StatusOK, roles)
}

func (a *API) listOrganizations(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	orgs, err := a.directory.ListOrganizations(r.Context(), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []*auth.Organization{}
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (a *API) getOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	org, err := a.directory.GetOrganization(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) createOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var req auth.OrganizationInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.directory.CreateOrganization(r.Context(), p, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/organizations/"+org.ID)
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) updateOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var req auth.OrganizationUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.directory.UpdateOrganization(r.Context(), p, mux.Vars(r)["id"], req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}
