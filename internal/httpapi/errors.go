package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"taskdesk.org/internal/audit"
	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/obs"
)

// maxBodyBytes bounds decoded JSON payloads.
const maxBodyBytes = 1 << 20

var sentinels = []error{
	auth.ErrInvalidInput,
	auth.ErrUnauthorized,
	auth.ErrForbidden,
	auth.ErrNotFound,
	auth.ErrConflict,
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorBody(w, r, code, msg, nil)
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, code int, msg string, extra map[string]any) {
	audit.TrailFromContext(r.Context()).SetError(msg)
	payload := map[string]any{
		"error": msg,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleError maps domain errors onto HTTP statuses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var levelErr *auth.LevelError
	switch {
	case errors.As(err, &levelErr):
		writeErrorBody(w, r, http.StatusForbidden, levelErr.Error(), map[string]any{
			"required_level": levelErr.Required,
			"current_level":  levelErr.Actual,
		})
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, publicMessage(err, "Invalid input"))
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, publicMessage(err, "Unauthorized"))
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, publicMessage(err, "Forbidden"))
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, publicMessage(err, "Not found"))
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, publicMessage(err, "Conflict"))
	default:
		obs.Logger().WithFields(logrus.Fields{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
			"error":      err.Error(),
		}).Error("request_failed")
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// publicMessage drops sentinel prefixes so clients see only the detail.
func publicMessage(err error, fallback string) string {
	msg := err.Error()
	for trimmed := true; trimmed; {
		trimmed = false
		for _, s := range sentinels {
			prefix := s.Error() + ": "
			if strings.HasPrefix(msg, prefix) {
				msg = strings.TrimPrefix(msg, prefix)
				trimmed = true
			}
		}
	}
	for _, s := range sentinels {
		if msg == s.Error() {
			return fallback
		}
	}
	if msg == "" {
		return fallback
	}
	return msg
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "resource not found")
}
