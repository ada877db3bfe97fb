package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/tasks"
)

func actor(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		handleError(w, r, errNoToken)
	}
	return p, ok
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := tasks.Filter{
		Status:       tasks.Status(strings.TrimSpace(q.Get("status"))),
		Priority:     tasks.Priority(strings.TrimSpace(q.Get("priority"))),
		AssignedToID: strings.TrimSpace(q.Get("assignedToId")),
		CreatedByID:  strings.TrimSpace(q.Get("createdById")),
		Category:     strings.TrimSpace(q.Get("category")),
	}
	list, err := a.tasks.List(r.Context(), p, f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var req tasks.CreateInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.tasks.Create(r.Context(), p, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/tasks/"+t.ID)
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	t, err := a.tasks.Get(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var req tasks.UpdateInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.tasks.Update(r.Context(), p, mux.Vars(r)["id"], req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	if err := a.tasks.Delete(r.Context(), p, mux.Vars(r)["id"]); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}
