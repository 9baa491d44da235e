package hierarchy

import "slices"

// node is one arena entry. Manager and subordinate links are mailbox
// identifiers into the same arena, never pointers.
type node struct {
	record       Record
	managerID    string
	subordinates []string
	size         int
}

func newNode(r Record) *node {
	return &node{record: r, managerID: r.ManagerMailboxIdentifier, size: 1}
}

func (n *node) isRoot() bool { return n.managerID == "" }

type arena map[string]*node

// addSubordinate appends childID to the manager's subordinates and repairs
// the cached sizes from the manager up to its root. No cycle detection is
// done here; Store.Add only attaches brand new nodes.
func (a arena) addSubordinate(managerID, childID string) {
	m := a[managerID]
	if m == nil {
		return
	}
	m.subordinates = append(m.subordinates, childID)
	a.updateSize(managerID)
}

func (a arena) removeSubordinate(managerID, childID string) {
	m := a[managerID]
	if m == nil {
		return
	}
	if i := slices.Index(m.subordinates, childID); i >= 0 {
		m.subordinates = slices.Delete(m.subordinates, i, i+1)
	}
	a.updateSize(managerID)
}

// updateSize recomputes size = 1 + sum(children) for id and every ancestor.
func (a arena) updateSize(id string) {
	for cur := id; cur != ""; {
		n := a[cur]
		if n == nil {
			return
		}
		size := 1
		for _, child := range n.subordinates {
			if c := a[child]; c != nil {
				size += c.size
			}
		}
		n.size = size
		cur = n.managerID
	}
}

// depth counts manager hops up to a root. A root has depth 0.
func (a arena) depth(id string) int {
	d := 0
	n := a[id]
	for n != nil && !n.isRoot() {
		d++
		n = a[n.managerID]
	}
	return d
}

type Metric string

const (
	MetricSize  Metric = "size"
	MetricDepth Metric = "depth"
)

// matchesRange reports whether the metric of id lies in [lo, hi]. Unknown
// metrics never match.
func (a arena) matchesRange(id string, metric Metric, lo, hi int) bool {
	n := a[id]
	if n == nil {
		return false
	}
	var v int
	switch metric {
	case MetricSize:
		v = n.size
	case MetricDepth:
		v = a.depth(id)
	default:
		return false
	}
	return lo <= v && v <= hi
}
