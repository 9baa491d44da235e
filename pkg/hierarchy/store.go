// Package hierarchy holds the in-memory organization forest: employees keyed
// by mailbox identifier, linked to their managers, with a cached
// sub-organization size on every node.
package hierarchy

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Record is the raw input for one employee. An empty
// ManagerMailboxIdentifier makes the employee a root.
type Record struct {
	MailboxIdentifier        string `json:"mailbox_identifier"`
	ManagerMailboxIdentifier string `json:"manager_mailbox_identifier,omitempty"`
	UserFullName             string `json:"user_full_name"`
	DepartmentID             int    `json:"department_id"`
	DepartmentName           string `json:"department_name"`
	JobTitle                 string `json:"job_title"`
}

// Employee is a read-only snapshot of one node taken under the store lock.
type Employee struct {
	Record
	ManagerName         string
	Subordinates        []string
	SubOrganizationSize int
	Depth               int
}

func (e Employee) IsRoot() bool { return e.ManagerMailboxIdentifier == "" }

type HierarchyEntry struct {
	Name    string  `json:"name"`
	Size    int     `json:"size"`
	Manager *string `json:"manager"`
}

// Store owns every node. Mutations hold the write lock for the whole size
// propagation; queries hold the read lock and return snapshots.
type Store struct {
	mu    sync.RWMutex
	nodes arena
	order []string
}

func NewStore() *Store {
	return &Store{nodes: make(arena)}
}

func (s *Store) Add(r Record) error {
	r.MailboxIdentifier = strings.TrimSpace(r.MailboxIdentifier)
	r.ManagerMailboxIdentifier = strings.TrimSpace(r.ManagerMailboxIdentifier)
	if r.MailboxIdentifier == "" {
		return fmt.Errorf("%w: mailbox_identifier is required", ErrInvalidAttribute)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[r.MailboxIdentifier]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, r.MailboxIdentifier)
	}
	if r.ManagerMailboxIdentifier != "" {
		if _, ok := s.nodes[r.ManagerMailboxIdentifier]; !ok {
			return fmt.Errorf("%w: %s (manager of %s)", ErrManagerNotFound, r.ManagerMailboxIdentifier, r.MailboxIdentifier)
		}
	}

	s.nodes[r.MailboxIdentifier] = newNode(r)
	s.order = append(s.order, r.MailboxIdentifier)
	if r.ManagerMailboxIdentifier != "" {
		s.nodes.addSubordinate(r.ManagerMailboxIdentifier, r.MailboxIdentifier)
	}
	return nil
}

// Remove deletes a leaf employee. Employees that still manage somebody are
// rejected with ErrHasSubordinates; use RemoveCascade to drop a subtree.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	if len(n.subordinates) > 0 {
		return fmt.Errorf("%w: %s manages %d employees", ErrHasSubordinates, id, len(n.subordinates))
	}
	s.detach(id)
	delete(s.nodes, id)
	s.order = slices.DeleteFunc(s.order, func(x string) bool { return x == id })
	return nil
}

// RemoveCascade deletes id and all transitive subordinates and returns the
// removed identifiers in pre-order.
func (s *Store) RemoveCascade(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	removed := s.subtreeLocked(id)
	s.detach(id)

	gone := make(map[string]struct{}, len(removed))
	for _, x := range removed {
		gone[x] = struct{}{}
		delete(s.nodes, x)
	}
	s.order = slices.DeleteFunc(s.order, func(x string) bool {
		_, ok := gone[x]
		return ok
	})
	return removed, nil
}

func (s *Store) detach(id string) {
	if n := s.nodes[id]; n != nil && !n.isRoot() {
		s.nodes.removeSubordinate(n.managerID, id)
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *Store) Get(id string) (Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return Employee{}, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	return s.snapshotLocked(id), nil
}

func (s *Store) Depth(id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	return s.nodes.depth(id), nil
}

func (s *Store) Roots() []Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Employee
	for _, id := range s.order {
		if s.nodes[id].isRoot() {
			out = append(out, s.snapshotLocked(id))
		}
	}
	return out
}

// Subtree returns id followed by its transitive subordinates in pre-order.
func (s *Store) Subtree(id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	return s.subtreeLocked(id), nil
}

func (s *Store) subtreeLocked(id string) []string {
	var out []string
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		subs := s.nodes[cur].subordinates
		for i := len(subs) - 1; i >= 0; i-- {
			stack = append(stack, subs[i])
		}
	}
	return out
}

// Chain returns the employee followed by each manager up to the root.
func (s *Store) Chain(id string) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	var out []Employee
	for cur := id; cur != ""; cur = s.nodes[cur].managerID {
		if _, ok := s.nodes[cur]; !ok {
			break
		}
		out = append(out, s.snapshotLocked(cur))
	}
	return out, nil
}

// Hierarchy lists every employee in insertion order with its size and
// manager name.
func (s *Store) Hierarchy() []HierarchyEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]HierarchyEntry, 0, len(s.order))
	for _, id := range s.order {
		n := s.nodes[id]
		e := HierarchyEntry{Name: n.record.UserFullName, Size: n.size}
		if m := s.nodes[n.managerID]; m != nil {
			name := m.record.UserFullName
			e.Manager = &name
		}
		out = append(out, e)
	}
	return out
}

func (s *Store) snapshotLocked(id string) Employee {
	n := s.nodes[id]
	e := Employee{
		Record:              n.record,
		Subordinates:        slices.Clone(n.subordinates),
		SubOrganizationSize: n.size,
		Depth:               s.nodes.depth(id),
	}
	if m := s.nodes[n.managerID]; m != nil {
		e.ManagerName = m.record.UserFullName
	}
	return e
}

func (s *Store) snapshotAllLocked() []Employee {
	out := make([]Employee, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.snapshotLocked(id))
	}
	return out
}
