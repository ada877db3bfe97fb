// Package audit derives, records and serves per-request audit rows.
package audit

import (
	"net/http"
	"regexp"
	"strings"
)

// Classification is what the audit row says a request did.
type Classification struct {
	Resource   string
	ResourceID string
	Action     Action
}

// idShape is intentionally loose: any 36 hex-or-dash characters.
var idShape = regexp.MustCompile(`(?i)^[a-f0-9-]{36}$`)

// Classify maps a request outcome to resource, optional id and action.
// Failed writes fall back to READ.
func Classify(path, method string, status int) Classification {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	apiIndex := -1
	for i, p := range parts {
		if p == "api" {
			apiIndex = i
			break
		}
	}
	var rest []string
	if start := apiIndex + 2; start < len(parts) {
		rest = parts[start:]
	}

	c := Classification{Resource: "unknown"}
	if len(rest) > 0 {
		c.Resource = rest[0]
	}
	if len(rest) > 1 && idShape.MatchString(rest[1]) {
		c.ResourceID = rest[1]
	}

	ok := status >= 200 && status < 300
	switch {
	case method == http.MethodPost && ok:
		c.Action = ActionCreate
	case method == http.MethodGet:
		c.Action = ActionRead
	case (method == http.MethodPut || method == http.MethodPatch) && ok:
		c.Action = ActionUpdate
	case method == http.MethodDelete && ok:
		c.Action = ActionDelete
	default:
		c.Action = ActionRead
	}
	return c
}

// opsPaths are hit by orchestrators and scrapers, never by users.
var opsPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

// ShouldAudit excludes documentation, operational endpoints and reads of the
// audit log itself.
func ShouldAudit(path, method string) bool {
	if _, ok := opsPaths[strings.TrimSuffix(path, "/")]; ok {
		return false
	}
	if strings.Contains(path, "/api/v1/docs") {
		return false
	}
	if method == http.MethodGet && strings.Contains(path, "/audit-logs") {
		return false
	}
	return true
}
