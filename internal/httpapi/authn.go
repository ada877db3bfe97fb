package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"taskdesk.org/internal/audit"
	"taskdesk.org/internal/auth"
)

const (
	authHeader        = "Authorization"
	bearer            = "Bearer "
	accessTokenCookie = "access_token"
)

var errNoToken = fmt.Errorf("%w: No token provided", auth.ErrUnauthorized)

// authenticate resolves the caller from the access_token cookie, falling
// back to a bearer header, and records the user on the audit trail.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := tokenFromRequest(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		principal, _, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) && !errors.Is(err, auth.ErrInvalidToken) {
				handleError(w, r, err)
				return
			}
			writeError(w, r, http.StatusUnauthorized, "Invalid token")
			return
		}
		audit.TrailFromContext(r.Context()).SetUser(principal.UserID())

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// guard applies the route's level gate, then its permission gate.
func guard(minLevel int, perms []string, next http.Handler) http.Handler {
	if minLevel <= 0 && len(perms) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			handleError(w, r, errNoToken)
			return
		}
		if err := auth.RequireLevel(principal, minLevel); err != nil {
			handleError(w, r, err)
			return
		}
		if err := auth.RequirePermissions(principal, perms...); err != nil {
			handleError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(accessTokenCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value), nil
	}
	return extractBearerToken(r.Header.Get(authHeader))
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errNoToken
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errNoToken
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errNoToken
	}
	return token, nil
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(a.auth.Issuer().TTL().Seconds()),
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
