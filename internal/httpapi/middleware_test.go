package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/obs"
)

func TestRateLimitExceeded(t *testing.T) {
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequestID(NewRateLimiter(1).Middleware(base))

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req.Clone(context.Background()))
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected first call 200, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req.Clone(context.Background()))
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr2.Code)
	}
	if rr2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	var body map[string]any
	if err := json.Unmarshal(rr2.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode rate limit body: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message in body")
	}
	if body["request_id"] == "" {
		t.Fatalf("expected request_id in body")
	}

	other := req.Clone(context.Background())
	other.RemoteAddr = "10.0.0.2:1234"
	rr3 := httptest.NewRecorder()
	handler.ServeHTTP(rr3, other)
	if rr3.Code != http.StatusOK {
		t.Fatalf("expected separate bucket per IP, got %d", rr3.Code)
	}
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	ips, err := NewIPResolver([]string{"192.168.0.0/16"})
	require.NoError(t, err)
	handler := RealIP(ips)(NewRateLimiter(1).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestIPResolver(t *testing.T) {
	ips, err := NewIPResolver([]string{"10.0.0.0/8", "192.168.1.5", ""})
	require.NoError(t, err)

	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"untrusted peer ignores header", "203.0.113.9:1", "198.51.100.1", "203.0.113.9"},
		{"trusted peer uses header", "10.1.2.3:1", "198.51.100.1", "198.51.100.1"},
		{"rightmost untrusted hop wins", "10.1.2.3:1", "1.1.1.1, 198.51.100.1, 10.9.9.9", "198.51.100.1"},
		{"single trusted address", "192.168.1.5:1", "198.51.100.2", "198.51.100.2"},
		{"trusted peer without header", "10.1.2.3:1", "", "10.1.2.3"},
		{"garbage hop stops the walk", "10.1.2.3:1", "198.51.100.1, junk", "10.1.2.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, ips.ClientIP(req))
		})
	}

	_, err = NewIPResolver([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = NewIPResolver([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestRateLimitDisabled(t *testing.T) {
	handler := NewRateLimiter(0).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 50; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("request %d limited with limiting disabled", i)
		}
	}
}

func TestLoggingJSONEmitsStructuredEntry(t *testing.T) {
	logger := obs.Logger()
	origWriter := logger.Out

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(origWriter)

	handler := RequestID(LoggingJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/log-test", nil)
	req.Header.Set("User-Agent", "middleware-test")
	req.RemoteAddr = "127.0.0.1:1234"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req.Clone(context.Background()))

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log is not valid JSON: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg", "request_id", "method", "path", "status", "duration_ms", "remote_ip"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected key %q in log entry", key)
		}
	}
	if entry["msg"] != "request_complete" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected status: %v", entry["status"])
	}
	if entry["level"] != "warning" {
		t.Fatalf("expected 4xx to log at warning, got %v", entry["level"])
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "caller-supplied")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "caller-supplied", seen)
	assert.Equal(t, "caller-supplied", rr.Header().Get(requestIDHeader))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 26)
	assert.Equal(t, seen, rr.Header().Get(requestIDHeader))
}

func TestRecoverReturnsJSON(t *testing.T) {
	handler := RequestID(Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
	assert.NotEmpty(t, body["request_id"])
}

func TestCORSAllowsConfiguredOriginWithCredentials(t *testing.T) {
	handler := CORS([]string{"http://localhost:4200"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tasks", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "http://localhost:4200", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandleErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{fmt.Errorf("%w: title is required", auth.ErrInvalidInput), http.StatusBadRequest, "title is required"},
		{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid token"},
		{fmt.Errorf("%w: Invalid credentials", auth.ErrUnauthorized), http.StatusUnauthorized, "Invalid credentials"},
		{&auth.PermissionError{Missing: []string{"tasks:delete"}}, http.StatusForbidden, "Insufficient permissions: missing tasks:delete"},
		{fmt.Errorf("%w: Access denied", auth.ErrForbidden), http.StatusForbidden, "Access denied"},
		{auth.ErrNotFound, http.StatusNotFound, "Not found"},
		{fmt.Errorf("%w: Email already exists", auth.ErrConflict), http.StatusConflict, "Email already exists"},
		{errors.New("connection refused"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		handleError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		if body["error"] != tc.message {
			t.Fatalf("%v: unexpected message %q", tc.err, body["error"])
		}
	}
}

func TestGuardOrdersLevelBeforePermissions(t *testing.T) {
	viewer := auth.NewPrincipal(
		&auth.User{ID: "u1", OrganizationID: "o1"},
		&auth.Role{Level: auth.LevelViewer, Permissions: []auth.Permission{{Resource: "tasks", Action: "read"}}},
		&auth.Organization{ID: "o1"},
	)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	run := func(h http.Handler, p *auth.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if p != nil {
			req = req.WithContext(auth.ContextWithPrincipal(req.Context(), *p))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, run(guard(0, []string{auth.PermTasksRead}, ok), &viewer).Code)
	assert.Equal(t, http.StatusForbidden, run(guard(0, []string{auth.PermTasksRead, auth.PermTasksDelete}, ok), &viewer).Code)

	rr := run(guard(auth.LevelAdmin, []string{auth.PermTasksDelete}, ok), &viewer)
	require.Equal(t, http.StatusForbidden, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(auth.LevelAdmin), body["required_level"])

	assert.Equal(t, http.StatusUnauthorized, run(guard(auth.LevelViewer, nil, ok), nil).Code)
	assert.Equal(t, http.StatusOK, run(guard(0, nil, ok), nil).Code)
}

func TestTokenFromRequestPrefersCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: "from-cookie"})
	req.Header.Set(authHeader, "Bearer from-header")
	token, err := tokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", token)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(authHeader, "bearer from-header")
	token, err = tokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "from-header", token)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(authHeader, "Basic dXNlcjpwYXNz")
	_, err = tokenFromRequest(req)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}
