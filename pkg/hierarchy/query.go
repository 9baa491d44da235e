package hierarchy

import (
	"fmt"
	"slices"
)

// MatchesRange reports whether the metric of id is within [lo, hi].
func (s *Store) MatchesRange(id string, metric Metric, lo, hi int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return false, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	return s.nodes.matchesRange(id, metric, lo, hi), nil
}

// FilterByRange returns employees whose size or depth lies in [lo, hi].
func (s *Store) FilterByRange(metric Metric, lo, hi int) []Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Employee
	for _, id := range s.order {
		if s.nodes.matchesRange(id, metric, lo, hi) {
			out = append(out, s.snapshotLocked(id))
		}
	}
	return out
}

// FilterByExact keeps employees matching every attribute=value pair.
// Numeric attributes are compared in decimal form; unknown attributes never
// match.
func (s *Store) FilterByExact(filters map[string]string) []Employee {
	return s.filterLocked(func(e Employee) bool {
		for k, v := range filters {
			if !e.equals(Attribute(k), v) {
				return false
			}
		}
		return true
	})
}

// FilterByPartial keeps employees where every value is a substring of a
// text attribute or a member of a collection attribute.
func (s *Store) FilterByPartial(filters map[string]string) ([]Employee, error) {
	for k, v := range filters {
		if _, err := (Employee{}).contains(Attribute(k), v); err != nil {
			return nil, err
		}
	}
	return s.filterLocked(func(e Employee) bool {
		for k, v := range filters {
			if ok, _ := e.contains(Attribute(k), v); !ok {
				return false
			}
		}
		return true
	}), nil
}

// Filter keeps employees for which keep returns true. The first error from
// keep aborts the scan.
func (s *Store) Filter(keep func(Employee) (bool, error)) ([]Employee, error) {
	var firstErr error
	out := s.filterLocked(func(e Employee) bool {
		if firstErr != nil {
			return false
		}
		ok, err := keep(e)
		if err != nil {
			firstErr = err
			return false
		}
		return ok
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (s *Store) filterLocked(keep func(Employee) bool) []Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Employee
	for _, e := range s.snapshotAllLocked() {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// SortBy returns every employee ordered by the attribute. Ties keep
// insertion order in both directions.
func (s *Store) SortBy(attr string, ascending bool) ([]Employee, error) {
	compare, err := comparatorFor(Attribute(attr))
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := s.snapshotAllLocked()
	s.mu.RUnlock()

	if ascending {
		slices.SortStableFunc(all, compare)
	} else {
		slices.SortStableFunc(all, func(x, y Employee) int { return compare(y, x) })
	}
	return all, nil
}
