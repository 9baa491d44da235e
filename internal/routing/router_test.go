package routing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func newTestRouter(t *testing.T) (*Router, *logtest.Hook) {
	t.Helper()
	c := testClassifier(t,
		Route{Path: "/hierarchy", Methods: []string{"GET"}, RouteClass: "public_api"},
		Route{Path: "/panic", Methods: []string{"GET"}, RouteClass: "public_api"},
	)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewRouter(c, logger), hook
}

func TestRouter_PanicBecomes500JSON(t *testing.T) {
	t.Parallel()

	r, hook := newTestRouter(t)
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("content-type=%q", rec.Header().Get("Content-Type"))
	}
	var sawPanic bool
	for _, e := range hook.AllEntries() {
		if e.Message == "routing: handler panic" {
			sawPanic = true
		}
	}
	if !sawPanic {
		t.Fatal("expected panic to be logged")
	}
}

func TestRouter_MethodNotAllowedAndNotFound(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/hierarchy", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hierarchy", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Code != "not_found" || env.RequestID == "" {
		t.Fatalf("env=%+v", env)
	}
}

func TestRouter_RequestIDAndAccessLog(t *testing.T) {
	t.Parallel()

	r, hook := newTestRouter(t)
	var seen string
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/hierarchy", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen = RequestIDFromContext(req.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/hierarchy", nil)
	req.Header.Set(RequestIDHeader, "caller-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen != "caller-42" || rec.Header().Get(RequestIDHeader) != "caller-42" {
		t.Fatalf("seen=%q header=%q", seen, rec.Header().Get(RequestIDHeader))
	}
	last := hook.LastEntry()
	if last == nil || last.Message != "request" {
		t.Fatalf("last=%+v", last)
	}
	if last.Data["status"] != http.StatusNoContent || last.Data["request_id"] != "caller-42" {
		t.Fatalf("data=%+v", last.Data)
	}
}

func TestRouter_Unlisted(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/hierarchy", noop)
	r.Handle(RouteClassPublicAPI, http.MethodPost, "/hierarchy", noop)
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/secret", noop)

	got := r.Unlisted()
	if len(got) != 2 || got[0] != "GET /secret" || got[1] != "POST /hierarchy" {
		t.Fatalf("unlisted=%v", got)
	}
}

func TestEntrypointClassAndStatusClass(t *testing.T) {
	t.Parallel()

	if got := entrypointClass(map[string]routeEntry{}, RouteClassOps); got != RouteClassOps {
		t.Fatalf("got=%q", got)
	}
	cases := map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 503: "5xx"}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Fatalf("status=%d got=%q", status, got)
		}
	}
}

func TestMetricLabelsCollapseUnknowns(t *testing.T) {
	t.Parallel()

	routes := map[string]map[string]routeEntry{
		"/hierarchy": {http.MethodGet: {rc: RouteClassPublicAPI}},
	}
	cases := []struct {
		path, method         string
		wantPath, wantMethod string
	}{
		{path: "/hierarchy", method: http.MethodGet, wantPath: "/hierarchy", wantMethod: http.MethodGet},
		{path: "/hierarchy", method: "BREW", wantPath: "/hierarchy", wantMethod: "other"},
		{path: "/hierarchy", method: http.MethodPost, wantPath: "/hierarchy", wantMethod: "other"},
		{path: "/wp-admin", method: "XYZZY", wantPath: "unmatched", wantMethod: "other"},
	}
	for _, tc := range cases {
		if got := metricPath(routes, tc.path); got != tc.wantPath {
			t.Fatalf("path=%s got=%q", tc.path, got)
		}
		if got := metricMethod(routes, tc.path, tc.method); got != tc.wantMethod {
			t.Fatalf("method=%s got=%q", tc.method, got)
		}
	}
}
