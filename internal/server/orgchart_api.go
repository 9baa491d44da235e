package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jacksonlee411/orgchart/internal/routing"
	"github.com/jacksonlee411/orgchart/modules/orgchart/services"
	"github.com/jacksonlee411/orgchart/pkg/hierarchy"
	"github.com/jacksonlee411/orgchart/pkg/httperr"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type orgChartAPI struct {
	svc services.OrgChartService
	log logrus.FieldLogger
}

func (a *orgChartAPI) register(r *routing.Router) {
	get := func(path string, h http.HandlerFunc) {
		r.Handle(routing.RouteClassPublicAPI, http.MethodGet, path, h)
	}
	get("/hierarchy", a.handleHierarchy)
	get("/sort_employees_by", a.handleSort)
	get("/get_mailbox_by_size", a.handleExactMetric(hierarchy.MetricSize, "size"))
	get("/get_mailbox_by_size_range", a.handleRangeMetric(hierarchy.MetricSize, "min_size", "max_size"))
	get("/get_mailbox_by_depth", a.handleExactMetric(hierarchy.MetricDepth, "depth"))
	get("/get_mailbox_by_depth_range", a.handleRangeMetric(hierarchy.MetricDepth, "min_depth", "max_depth"))
	get("/filter_mailbox", a.handleFilterExact)
	get("/filter_mailbox_partial", a.handleFilterPartial)
	get("/filter_mailbox_expr", a.handleFilterExpr)
	get("/reporting_line", a.handleReportingLine)
	r.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/employees", http.HandlerFunc(a.handleCreateEmployee))
	r.Handle(routing.RouteClassPublicAPI, http.MethodDelete, "/employees", http.HandlerFunc(a.handleDeleteEmployee))
}

func (a *orgChartAPI) handleHierarchy(w http.ResponseWriter, _ *http.Request) {
	routing.WriteJSON(w, http.StatusOK, a.svc.Hierarchy())
}

func (a *orgChartAPI) handleSort(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	column := strings.TrimSpace(q.Get("by_column"))
	if column == "" {
		writeInvalidQuery(w, r, "by_column is required")
		return
	}
	ascending := false
	if raw := strings.TrimSpace(q.Get("ascending")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeInvalidQuery(w, r, "ascending must be a boolean")
			return
		}
		ascending = v
	}
	rows, err := a.svc.SortBy(column, ascending)
	a.writeRows(w, r, rows, err)
}

func (a *orgChartAPI) handleExactMetric(metric hierarchy.Metric, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := queryInt(r, param)
		if err != nil {
			writeInvalidQuery(w, r, err.Error())
			return
		}
		rows, err := a.svc.FilterByRange(metric, v, v)
		a.writeRows(w, r, rows, err)
	}
}

func (a *orgChartAPI) handleRangeMetric(metric hierarchy.Metric, minParam, maxParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lo, err := queryInt(r, minParam)
		if err != nil {
			writeInvalidQuery(w, r, err.Error())
			return
		}
		hi, err := queryInt(r, maxParam)
		if err != nil {
			writeInvalidQuery(w, r, err.Error())
			return
		}
		rows, err := a.svc.FilterByRange(metric, lo, hi)
		a.writeRows(w, r, rows, err)
	}
}

func (a *orgChartAPI) handleFilterExact(w http.ResponseWriter, r *http.Request) {
	rows, err := a.svc.FilterByExact(queryFilters(r))
	a.writeRows(w, r, rows, err)
}

func (a *orgChartAPI) handleFilterPartial(w http.ResponseWriter, r *http.Request) {
	rows, err := a.svc.FilterByPartial(queryFilters(r))
	a.writeRows(w, r, rows, err)
}

func (a *orgChartAPI) handleFilterExpr(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	if strings.TrimSpace(expr) == "" {
		writeInvalidQuery(w, r, "expr is required")
		return
	}
	rows, err := a.svc.FilterByExpression(expr)
	a.writeRows(w, r, rows, err)
}

func (a *orgChartAPI) handleReportingLine(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("mailbox_identifier"))
	if id == "" {
		writeInvalidQuery(w, r, "mailbox_identifier is required")
		return
	}
	rows, err := a.svc.ReportingLine(id)
	a.writeRows(w, r, rows, err)
}

func (a *orgChartAPI) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var rec hierarchy.Record
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		a.writeError(w, r, httperr.NewBadRequest("invalid json body: "+err.Error()))
		return
	}
	if err := a.svc.Add(rec); err != nil {
		a.writeError(w, r, err)
		return
	}
	emp, err := a.svc.Store().Get(strings.TrimSpace(rec.MailboxIdentifier))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rows, err := hierarchy.Render([]hierarchy.Employee{emp})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.log.WithFields(logrus.Fields{
		"request_id":         routing.RequestIDFromContext(r.Context()),
		"mailbox_identifier": emp.MailboxIdentifier,
	}).Info("employee added")
	routing.WriteJSON(w, http.StatusCreated, rows[0])
}

func (a *orgChartAPI) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := strings.TrimSpace(q.Get("mailbox_identifier"))
	if id == "" {
		writeInvalidQuery(w, r, "mailbox_identifier is required")
		return
	}
	cascade := false
	if raw := strings.TrimSpace(q.Get("cascade")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeInvalidQuery(w, r, "cascade must be a boolean")
			return
		}
		cascade = v
	}

	removed := []string{id}
	var err error
	if cascade {
		removed, err = a.svc.RemoveCascade(id)
	} else {
		err = a.svc.Remove(id)
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.log.WithFields(logrus.Fields{
		"request_id": routing.RequestIDFromContext(r.Context()),
		"removed":    len(removed),
		"cascade":    cascade,
	}).Info("employee removed")
	routing.WriteJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (a *orgChartAPI) writeRows(w http.ResponseWriter, r *http.Request, rows []hierarchy.Result, err error) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, rows)
}

func (a *orgChartAPI) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrInvalidExpression) {
		routing.WriteError(w, r, http.StatusBadRequest, "invalid_expression", err.Error())
		return
	}
	status, code := httperr.StatusFor(err)
	if status == http.StatusInternalServerError {
		a.log.WithFields(logrus.Fields{
			"request_id": routing.RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error("request failed")
		routing.WriteError(w, r, status, code, "internal error")
		return
	}
	routing.WriteError(w, r, status, code, err.Error())
}

func writeInvalidQuery(w http.ResponseWriter, r *http.Request, message string) {
	routing.WriteError(w, r, http.StatusBadRequest, "invalid_query", message)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// queryFilters keeps the first value of every query parameter.
func queryFilters(r *http.Request) map[string]string {
	q := r.URL.Query()
	out := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
