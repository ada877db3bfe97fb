package audit

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
)

// maxCapturedBody bounds how much of a request body is kept for metadata.
const maxCapturedBody = 1 << 20

type trailContextKey struct{}

// Trail is filled by inner layers while a request is handled: the
// authentication gate sets the user and the error writer sets the message.
type Trail struct {
	mu     sync.Mutex
	userID string
	errMsg string
}

// WithTrail installs an empty Trail in the context.
func WithTrail(ctx context.Context) (context.Context, *Trail) {
	t := &Trail{}
	return context.WithValue(ctx, trailContextKey{}, t), t
}

// TrailFromContext returns the request's Trail, or nil outside the audit middleware.
func TrailFromContext(ctx context.Context) *Trail {
	t, _ := ctx.Value(trailContextKey{}).(*Trail)
	return t
}

func (t *Trail) SetUser(id string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.userID = id
	t.mu.Unlock()
}

func (t *Trail) SetError(msg string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.errMsg = msg
	t.mu.Unlock()
}

func (t *Trail) snapshot() (string, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userID, t.errMsg
}

// Middleware audits every eligible request after its handler returns.
// clientIP may be nil, in which case the socket peer address is used.
func Middleware(rec *Recorder, clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	if clientIP == nil {
		clientIP = remoteHost
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ShouldAudit(r.URL.Path, r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			var captured []byte
			if r.Body != nil && r.Body != http.NoBody {
				captured, _ = io.ReadAll(io.LimitReader(r.Body, maxCapturedBody))
				r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(captured), r.Body), Closer: r.Body}
			}
			ctx, trail := WithTrail(r.Context())
			r = r.WithContext(ctx)
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

			finish := func(status int) {
				userID, errMsg := trail.snapshot()
				c := Classify(r.URL.Path, r.Method, status)
				e := Entry{
					Action:     c.Action,
					Resource:   c.Resource,
					Method:     r.Method,
					Endpoint:   r.URL.RequestURI(),
					StatusCode: status,
					IPAddress:  clientIP(r),
					UserAgent:  r.UserAgent(),
					Metadata: Metadata{
						Body:  SanitizeBody(decodeBody(captured)),
						Query: queryMap(r.URL.Query()),
						Error: scrubString(errMsg),
					},
				}
				if userID != "" {
					e.UserID = &userID
				}
				if c.ResourceID != "" {
					id := c.ResourceID
					e.ResourceID = &id
				}
				rec.Dispatch(e)
			}

			defer func() {
				if p := recover(); p != nil {
					finish(http.StatusInternalServerError)
					panic(p)
				}
			}()
			next.ServeHTTP(sw, r)
			finish(sw.code)
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// replayBody serves the captured prefix again before the unread remainder.
type replayBody struct {
	io.Reader
	io.Closer
}
