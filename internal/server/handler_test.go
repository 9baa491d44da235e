package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jacksonlee411/orgchart/internal/routing"
	"github.com/jacksonlee411/orgchart/modules/orgchart/services"
	"github.com/jacksonlee411/orgchart/pkg/hierarchy"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func testAllowlistPath(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	return filepath.Clean(filepath.Join(wd, "..", "..", "config", "routing", "allowlist.yaml"))
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store := hierarchy.NewStore()
	for _, r := range []hierarchy.Record{
		{MailboxIdentifier: "a@corp", UserFullName: "Ann Lee", DepartmentID: 1, DepartmentName: "Exec", JobTitle: "CEO"},
		{MailboxIdentifier: "b@corp", ManagerMailboxIdentifier: "a@corp", UserFullName: "Ben Ode", DepartmentID: 2, DepartmentName: "Engineering", JobTitle: "Engineer"},
		{MailboxIdentifier: "c@corp", ManagerMailboxIdentifier: "a@corp", UserFullName: "Cat Ray", DepartmentID: 2, DepartmentName: "Engineering", JobTitle: "Engineer"},
		{MailboxIdentifier: "d@corp", ManagerMailboxIdentifier: "c@corp", UserFullName: "Dan Wu", DepartmentID: 3, DepartmentName: "Support", JobTitle: "Agent"},
	} {
		if err := store.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	expr, err := services.NewExprFilter()
	if err != nil {
		t.Fatal(err)
	}
	logger, _ := logtest.NewNullLogger()
	h, err := NewHandlerWithOptions(HandlerOptions{
		Service:       services.NewOrgChartService(store, expr),
		Logger:        logger,
		AllowlistPath: testAllowlistPath(t),
	})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMailboxes(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var rows []hierarchy.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("body=%s err=%v", rec.Body.String(), err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.MailboxIdentifier)
	}
	return out
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env routing.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("body=%s err=%v", rec.Body.String(), err)
	}
	return env.Code
}

func TestNewHandler_HealthAndMetrics(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/health", "/healthz"} {
		rec := do(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("path=%s status=%d", path, rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "orgchart_employees") {
		t.Fatalf("metrics body missing gauge")
	}
}

func TestNewHandler_Queries(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name   string
		target string
		want   []string
	}{
		{name: "sort default descending", target: "/sort_employees_by?by_column=user_full_name", want: []string{"d@corp", "c@corp", "b@corp", "a@corp"}},
		{name: "sort ascending", target: "/sort_employees_by?by_column=sub_organization_size&ascending=true", want: []string{"b@corp", "d@corp", "c@corp", "a@corp"}},
		{name: "size", target: "/get_mailbox_by_size?size=1", want: []string{"b@corp", "d@corp"}},
		{name: "size range", target: "/get_mailbox_by_size_range?min_size=2&max_size=4", want: []string{"a@corp", "c@corp"}},
		{name: "depth", target: "/get_mailbox_by_depth?depth=0", want: []string{"a@corp"}},
		{name: "depth range", target: "/get_mailbox_by_depth_range?min_depth=1&max_depth=2", want: []string{"b@corp", "c@corp", "d@corp"}},
		{name: "exact", target: "/filter_mailbox?job_title=Engineer&department_id=2", want: []string{"b@corp", "c@corp"}},
		{name: "partial", target: "/filter_mailbox_partial?subordinates=d@corp", want: []string{"c@corp"}},
		{name: "expr", target: "/filter_mailbox_expr?expr=" + "e.depth%20%3D%3D%202", want: []string{"d@corp"}},
		{name: "reporting line", target: "/reporting_line?mailbox_identifier=d@corp", want: []string{"d@corp", "c@corp", "a@corp"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tc.target, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			got := decodeMailboxes(t, rec)
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("got=%v want=%v", got, tc.want)
			}
		})
	}
}

func TestNewHandler_QueryErrors(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name   string
		method string
		target string
		status int
		code   string
	}{
		{name: "bad int", method: http.MethodGet, target: "/get_mailbox_by_size?size=abc", status: http.StatusBadRequest, code: "invalid_query"},
		{name: "missing int", method: http.MethodGet, target: "/get_mailbox_by_depth_range?min_depth=1", status: http.StatusBadRequest, code: "invalid_query"},
		{name: "bad bool", method: http.MethodGet, target: "/sort_employees_by?by_column=depth&ascending=maybe", status: http.StatusBadRequest, code: "invalid_query"},
		{name: "missing column", method: http.MethodGet, target: "/sort_employees_by", status: http.StatusBadRequest, code: "invalid_query"},
		{name: "unknown column", method: http.MethodGet, target: "/sort_employees_by?by_column=salary", status: http.StatusBadRequest, code: "invalid_attribute"},
		{name: "no match", method: http.MethodGet, target: "/get_mailbox_by_size?size=99", status: http.StatusNotFound, code: "no_matching_records"},
		{name: "unknown exact attribute", method: http.MethodGet, target: "/filter_mailbox?salary=1", status: http.StatusNotFound, code: "no_matching_records"},
		{name: "numeric partial", method: http.MethodGet, target: "/filter_mailbox_partial?department_id=2", status: http.StatusBadRequest, code: "unsupported_filter_value"},
		{name: "unknown partial attribute", method: http.MethodGet, target: "/filter_mailbox_partial?salary=1", status: http.StatusBadRequest, code: "invalid_attribute"},
		{name: "bad expr", method: http.MethodGet, target: "/filter_mailbox_expr?expr=e.depth%20%2B", status: http.StatusBadRequest, code: "invalid_expression"},
		{name: "missing expr", method: http.MethodGet, target: "/filter_mailbox_expr", status: http.StatusBadRequest, code: "invalid_query"},
		{name: "unknown employee", method: http.MethodGet, target: "/reporting_line?mailbox_identifier=zzz", status: http.StatusNotFound, code: "employee_not_found"},
		{name: "unknown path", method: http.MethodGet, target: "/nope", status: http.StatusNotFound, code: "not_found"},
		{name: "wrong method", method: http.MethodPut, target: "/hierarchy", status: http.StatusMethodNotAllowed, code: "method_not_allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.target, "")
			if rec.Code != tc.status {
				t.Fatalf("status=%d want=%d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if got := decodeErrorCode(t, rec); got != tc.code {
				t.Fatalf("code=%q want=%q", got, tc.code)
			}
		})
	}
}

func TestNewHandler_Hierarchy(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/hierarchy", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var entries []hierarchy.HierarchyEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 || entries[0].Name != "Ann Lee" || entries[0].Size != 4 || entries[0].Manager != nil {
		t.Fatalf("entries=%+v", entries)
	}
	if entries[3].Manager == nil || *entries[3].Manager != "Cat Ray" {
		t.Fatalf("entry=%+v", entries[3])
	}
}

func TestNewHandler_Mutations(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/employees", `{"mailbox_identifier":"e@corp","manager_mailbox_identifier":"d@corp","user_full_name":"Eve Sun","department_id":3,"department_name":"Support","job_title":"Agent"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created hierarchy.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.MailboxIdentifier != "e@corp" || created.ManagerName == nil || *created.ManagerName != "Dan Wu" {
		t.Fatalf("created=%+v", created)
	}

	rec = do(t, h, http.MethodGet, "/get_mailbox_by_size?size=5", "")
	if got := decodeMailboxes(t, rec); strings.Join(got, ",") != "a@corp" {
		t.Fatalf("got=%v", got)
	}

	errCases := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{name: "duplicate", method: http.MethodPost, target: "/employees", body: `{"mailbox_identifier":"e@corp"}`, status: http.StatusConflict, code: "duplicate_identifier"},
		{name: "unknown manager", method: http.MethodPost, target: "/employees", body: `{"mailbox_identifier":"f@corp","manager_mailbox_identifier":"ghost"}`, status: http.StatusNotFound, code: "manager_not_found"},
		{name: "bad json", method: http.MethodPost, target: "/employees", body: `{"mailbox_identifier":`, status: http.StatusBadRequest, code: "bad_request"},
		{name: "unknown field", method: http.MethodPost, target: "/employees", body: `{"salary":1}`, status: http.StatusBadRequest, code: "bad_request"},
		{name: "empty id", method: http.MethodPost, target: "/employees", body: `{"mailbox_identifier":"  "}`, status: http.StatusBadRequest, code: "invalid_attribute"},
		{name: "has subordinates", method: http.MethodDelete, target: "/employees?mailbox_identifier=c@corp", status: http.StatusConflict, code: "employee_has_subordinates"},
		{name: "bad cascade", method: http.MethodDelete, target: "/employees?mailbox_identifier=c@corp&cascade=yes", status: http.StatusBadRequest, code: "invalid_query"},
		{name: "unknown delete", method: http.MethodDelete, target: "/employees?mailbox_identifier=zzz", status: http.StatusNotFound, code: "employee_not_found"},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.target, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status=%d want=%d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if got := decodeErrorCode(t, rec); got != tc.code {
				t.Fatalf("code=%q want=%q", got, tc.code)
			}
		})
	}

	rec = do(t, h, http.MethodDelete, "/employees?mailbox_identifier=c@corp&cascade=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var removed struct {
		Removed []string `json:"removed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &removed); err != nil {
		t.Fatal(err)
	}
	if strings.Join(removed.Removed, ",") != "c@corp,d@corp,e@corp" {
		t.Fatalf("removed=%v", removed.Removed)
	}

	rec = do(t, h, http.MethodDelete, "/employees?mailbox_identifier=b@corp", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/get_mailbox_by_size?size=1", "")
	if got := decodeMailboxes(t, rec); strings.Join(got, ",") != "a@corp" {
		t.Fatalf("got=%v", got)
	}
}

func TestNewHandlerWithOptions_Errors(t *testing.T) {
	if _, err := NewHandlerWithOptions(HandlerOptions{}); err == nil {
		t.Fatal("expected missing service error")
	}

	svc := services.NewOrgChartService(hierarchy.NewStore(), nil)
	if _, err := NewHandlerWithOptions(HandlerOptions{Service: svc, AllowlistPath: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatal("expected allowlist read error")
	}

	path := filepath.Join(t.TempDir(), "allowlist.yaml")
	partial := "version: 1\nentrypoints:\n  server:\n    routes:\n      - path: /health\n        methods: [GET]\n        route_class: ops\n"
	if err := os.WriteFile(path, []byte(partial), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewHandlerWithOptions(HandlerOptions{Service: svc, AllowlistPath: path})
	if err == nil || !strings.Contains(err.Error(), "GET /hierarchy") {
		t.Fatalf("err=%v", err)
	}
}

func TestDefaultAllowlistPath(t *testing.T) {
	p, err := defaultAllowlistPath()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(filepath.ToSlash(p), "config/routing/allowlist.yaml") {
		t.Fatalf("path=%q", p)
	}
}
