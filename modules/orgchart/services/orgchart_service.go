package services

import (
	"errors"
	"fmt"

	"github.com/jacksonlee411/orgchart/pkg/hierarchy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	employeesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orgchart_employees",
		Help: "Number of employees currently held in the hierarchy.",
	})
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgchart_mutations_total",
		Help: "Hierarchy mutations by operation and outcome.",
	}, []string{"operation", "outcome"})
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orgchart_queries_total",
		Help: "Hierarchy queries by kind and outcome.",
	}, []string{"query", "outcome"})
)

// OrgChartService is the caller-facing surface over a hierarchy store. Every
// list query is rendered to result rows, and an empty match is reported as
// hierarchy.ErrNoMatchingRecords.
type OrgChartService struct {
	store *hierarchy.Store
	expr  *ExprFilter
}

func NewOrgChartService(store *hierarchy.Store, expr *ExprFilter) OrgChartService {
	employeesGauge.Set(float64(store.Len()))
	return OrgChartService{store: store, expr: expr}
}

func (s OrgChartService) Store() *hierarchy.Store { return s.store }

func (s OrgChartService) Hierarchy() []hierarchy.HierarchyEntry {
	queriesTotal.WithLabelValues("hierarchy", "ok").Inc()
	return s.store.Hierarchy()
}

func (s OrgChartService) SortBy(attr string, ascending bool) ([]hierarchy.Result, error) {
	employees, err := s.store.SortBy(attr, ascending)
	if err != nil {
		return s.observe("sort", nil, err)
	}
	return s.observe("sort", employees, nil)
}

func (s OrgChartService) FilterByRange(metric hierarchy.Metric, lo, hi int) ([]hierarchy.Result, error) {
	return s.observe("range_"+string(metric), s.store.FilterByRange(metric, lo, hi), nil)
}

func (s OrgChartService) FilterByExact(filters map[string]string) ([]hierarchy.Result, error) {
	return s.observe("exact", s.store.FilterByExact(filters), nil)
}

func (s OrgChartService) FilterByPartial(filters map[string]string) ([]hierarchy.Result, error) {
	employees, err := s.store.FilterByPartial(filters)
	return s.observe("partial", employees, err)
}

func (s OrgChartService) FilterByExpression(expr string) ([]hierarchy.Result, error) {
	if s.expr == nil {
		return s.observe("expression", nil, fmt.Errorf("%w: expression filter disabled", ErrInvalidExpression))
	}
	employees, err := s.expr.Apply(s.store, expr)
	return s.observe("expression", employees, err)
}

// ReportingLine renders the employee followed by every manager up to the root.
func (s OrgChartService) ReportingLine(id string) ([]hierarchy.Result, error) {
	chain, err := s.store.Chain(id)
	return s.observe("reporting_line", chain, err)
}

func (s OrgChartService) Add(r hierarchy.Record) error {
	return s.mutated("add", s.store.Add(r))
}

func (s OrgChartService) Remove(id string) error {
	return s.mutated("remove", s.store.Remove(id))
}

func (s OrgChartService) RemoveCascade(id string) ([]string, error) {
	removed, err := s.store.RemoveCascade(id)
	return removed, s.mutated("remove_cascade", err)
}

func (s OrgChartService) observe(query string, employees []hierarchy.Employee, err error) ([]hierarchy.Result, error) {
	if err == nil {
		var rows []hierarchy.Result
		rows, err = hierarchy.Render(employees)
		if err == nil {
			queriesTotal.WithLabelValues(query, "ok").Inc()
			return rows, nil
		}
	}
	queriesTotal.WithLabelValues(query, outcomeOf(err)).Inc()
	return nil, err
}

func (s OrgChartService) mutated(op string, err error) error {
	mutationsTotal.WithLabelValues(op, outcomeOf(err)).Inc()
	employeesGauge.Set(float64(s.store.Len()))
	return err
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	for _, kind := range []error{
		hierarchy.ErrNoMatchingRecords,
		hierarchy.ErrDuplicateIdentifier,
		hierarchy.ErrManagerNotFound,
		hierarchy.ErrEmployeeNotFound,
		hierarchy.ErrHasSubordinates,
		hierarchy.ErrInvalidAttribute,
		hierarchy.ErrUnsupportedFilterValue,
		ErrInvalidExpression,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "error"
}
