package audit

import (
	"encoding/json"
	"net/url"
	"strings"
)

// SanitizeBody returns a copy of a decoded JSON body with a top-level
// "password" field replaced by RedactedMarker and NUL characters scrubbed from
// every string.
func SanitizeBody(body any) any {
	out := scrub(body)
	if obj, ok := out.(map[string]any); ok {
		if _, ok := obj["password"]; ok {
			obj["password"] = RedactedMarker
		}
	}
	return out
}

// scrubString replaces NUL, which PostgreSQL rejects in text and jsonb values.
func scrubString(s string) string {
	return strings.ReplaceAll(s, "\x00", "\uFFFD")
}

// scrub deep-copies a decoded JSON value, applying scrubString to keys and strings.
func scrub(v any) any {
	switch t := v.(type) {
	case string:
		return scrubString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[scrubString(k)] = scrub(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = scrub(val)
		}
		return out
	default:
		return v
	}
}

// decodeBody parses a captured request body; anything that is not JSON is dropped.
func decodeBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func queryMap(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		k = scrubString(k)
		if len(v) == 1 {
			out[k] = scrubString(v[0])
			continue
		}
		vals := make([]string, len(v))
		for i, s := range v {
			vals[i] = scrubString(s)
		}
		out[k] = vals
	}
	return out
}
