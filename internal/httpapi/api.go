package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"taskdesk.org/api/spec"
	"taskdesk.org/internal/audit"
	"taskdesk.org/internal/auth"
	"taskdesk.org/internal/obs"
	"taskdesk.org/internal/tasks"
)

// APIPrefix is the mount point of every versioned route.
const APIPrefix = "/api/v1"

// ReadyProbe pings the backing services that are configured.
type ReadyProbe struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Auth      *auth.Service
	Directory *auth.Directory
	Tasks     *tasks.Service
	Audit     *audit.Service
	Recorder  *audit.Recorder
	Feed      *audit.Feed
	Ready     ReadyProbe

	Version       string
	CORSOrigins   []string
	AuthRateLimit int
	SecureCookies bool
	// Addresses or CIDR blocks whose X-Forwarded-For header is believed.
	TrustedProxies []string
}

// API is the HTTP layer.
type API struct {
	router        *mux.Router
	auth          *auth.Service
	directory     *auth.Directory
	tasks         *tasks.Service
	audits        *audit.Service
	recorder      *audit.Recorder
	feed          *audit.Feed
	readyProbe    ReadyProbe
	limiter       *RateLimiter
	corsOrigins   []string
	secureCookies bool
	version       string
	ips           *IPResolver
}

func New(d Deps) (*API, error) {
	switch {
	case d.Auth == nil:
		return nil, errors.New("httpapi: auth service is required")
	case d.Directory == nil:
		return nil, errors.New("httpapi: directory is required")
	case d.Tasks == nil:
		return nil, errors.New("httpapi: task service is required")
	case d.Audit == nil:
		return nil, errors.New("httpapi: audit service is required")
	case d.Recorder == nil:
		return nil, errors.New("httpapi: audit recorder is required")
	}
	ips, err := NewIPResolver(d.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	a := &API{
		router:        mux.NewRouter(),
		auth:          d.Auth,
		directory:     d.Directory,
		tasks:         d.Tasks,
		audits:        d.Audit,
		recorder:      d.Recorder,
		feed:          d.Feed,
		readyProbe:    d.Ready,
		limiter:       NewRateLimiter(d.AuthRateLimit),
		corsOrigins:   d.CORSOrigins,
		secureCookies: d.SecureCookies,
		version:       d.Version,
		ips:           ips,
	}

	a.router.Use(routeTemplate)
	a.router.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)
	a.router.HandleFunc("/readyz", a.Ready).Methods(http.MethodGet)
	a.router.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	api := a.router.PathPrefix(APIPrefix).Subrouter()
	for _, rt := range a.routes() {
		api.Handle(rt.path, a.wrap(rt)).Methods(rt.method)
	}

	a.router.NotFoundHandler = http.HandlerFunc(notFound)
	a.router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	return a, nil
}

// Handler returns the router wrapped in the request pipeline, outermost first.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = audit.Middleware(a.recorder, clientIP)(h)
	h = CORS(a.corsOrigins)(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = Recover(h)
	h = RealIP(a.ips)(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "taskdesk-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

func (a *API) Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(spec.DocsPage)
}
