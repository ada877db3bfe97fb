package obs

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	auditWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_writes_total",
			Help: "Audit rows written, by result.",
		},
		[]string{"result"},
	)
)

// Init registers the service metrics in the default registry. Safe to call twice.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, auditWritesTotal)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuditWrite counts one audit persistence attempt; result is "ok" or "error".
func AuditWrite(result string) {
	auditWritesTotal.WithLabelValues(result).Inc()
}

// UnmatchedRoute labels requests that no route template claimed.
const UnmatchedRoute = "unmatched"

type routeKey struct{}

type routeLabel struct{ template string }

// SetRoute records the matched route template for the request being
// instrumented. It is a no-op outside Instrument.
func SetRoute(r *http.Request, template string) {
	if l, ok := r.Context().Value(routeKey{}).(*routeLabel); ok {
		l.template = template
	}
}

// Instrument records request count, latency and in-flight gauge. The path label
// is the route template reported through SetRoute, so label cardinality is
// bounded by the route table.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label := &routeLabel{template: UnmatchedRoute}
		r = r.WithContext(context.WithValue(r.Context(), routeKey{}, label))
		method := methodLabel(r.Method)

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, label.template, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, label.template, status).Inc()
	})
}

func methodLabel(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return m
	}
	return "OTHER"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
