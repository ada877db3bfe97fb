package httpapi

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/obs"
)

type sessionResponse struct {
	User *auth.User `json:"user"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.auth.Register(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.setSessionCookie(w, sess.Token)
	writeJSON(w, http.StatusCreated, sessionResponse{User: sess.Principal.User})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.auth.Login(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	a.setSessionCookie(w, sess.Token)
	writeJSON(w, http.StatusOK, sessionResponse{User: sess.Principal.User})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := auth.TokenFromContext(r.Context()); ok {
		if err := a.auth.Logout(r.Context(), token); err != nil {
			obs.Logger().WithFields(logrus.Fields{
				"request_id": RequestIDFromContext(r.Context()),
				"error":      err.Error(),
			}).Warn("revoke_failed")
		}
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		handleError(w, r, errNoToken)
		return
	}
	writeJSON(w, http.StatusOK, principal.User)
}
