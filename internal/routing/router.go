package routing

import (
	"net/http"
	"runtime/debug"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "orgchart_http_request_duration_seconds",
	Help:    "HTTP request latency by route and status class.",
	Buckets: prometheus.DefBuckets,
}, []string{"route_class", "method", "path", "code"})

type Router struct {
	classifier *Classifier
	log        logrus.FieldLogger
	routes     map[string]map[string]routeEntry
	unlisted   []string
}

type routeEntry struct {
	rc      RouteClass
	handler http.Handler
}

func NewRouter(classifier *Classifier, log logrus.FieldLogger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{
		classifier: classifier,
		log:        log,
		routes:     make(map[string]map[string]routeEntry),
	}
}

func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	if !r.classifier.Allowed(method, path) {
		r.unlisted = append(r.unlisted, method+" "+path)
	}
	if r.routes[path] == nil {
		r.routes[path] = make(map[string]routeEntry)
	}

	r.routes[path][method] = routeEntry{
		rc: rc,
		handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.WithFields(logrus.Fields{
						"request_id": RequestIDFromContext(req.Context()),
						"panic":      rec,
						"stack":      string(debug.Stack()),
					}).Error("routing: handler panic")
					WriteError(w, req, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			h.ServeHTTP(w, req)
		}),
	}
}

// Unlisted returns registrations missing from the allowlist.
func (r *Router) Unlisted() []string {
	out := append([]string(nil), r.unlisted...)
	sort.Strings(out)
	return out
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	id := requestID(req.Header.Get(RequestIDHeader))
	req = req.WithContext(WithRequestID(req.Context(), id))
	w.Header().Set(RequestIDHeader, id)
	rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	rc := r.classifier.Classify(req.URL.Path)
	r.dispatch(rw, req, &rc)

	elapsed := time.Since(start)
	requestDuration.WithLabelValues(string(rc), metricMethod(r.routes, req.URL.Path, req.Method), metricPath(r.routes, req.URL.Path), statusClass(rw.status)).Observe(elapsed.Seconds())
	entry := r.log.WithFields(logrus.Fields{
		"request_id":  id,
		"method":      req.Method,
		"path":        req.URL.Path,
		"status":      rw.status,
		"duration_ms": elapsed.Milliseconds(),
	})
	if rw.status >= http.StatusInternalServerError {
		entry.Warn("request")
		return
	}
	entry.Debug("request")
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request, rc *RouteClass) {
	methods, ok := r.routes[req.URL.Path]
	if !ok {
		WriteError(w, req, http.StatusNotFound, "not_found", "not found")
		return
	}
	entry, ok := methods[req.Method]
	if !ok {
		*rc = entrypointClass(methods, *rc)
		WriteError(w, req, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	*rc = entry.rc
	entry.handler.ServeHTTP(w, req)
}

func entrypointClass(methods map[string]routeEntry, fallback RouteClass) RouteClass {
	for _, e := range methods {
		return e.rc
	}
	return fallback
}

// metricPath collapses unknown paths so scanners cannot blow up label
// cardinality.
func metricPath(routes map[string]map[string]routeEntry, path string) string {
	if _, ok := routes[path]; ok {
		return path
	}
	return "unmatched"
}

// metricMethod keeps only methods registered for the path; anything else is
// reported as "other".
func metricMethod(routes map[string]map[string]routeEntry, path, method string) string {
	if _, ok := routes[path][method]; ok {
		return method
	}
	return "other"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}
