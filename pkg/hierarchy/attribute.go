package hierarchy

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Attribute names a queryable employee attribute. The names match the
// column names of the mailbox export.
type Attribute string

const (
	AttrUserFullName        Attribute = "user_full_name"
	AttrMailboxIdentifier   Attribute = "mailbox_identifier"
	AttrDepartmentID        Attribute = "department_id"
	AttrDepartmentName      Attribute = "department_name"
	AttrJobTitle            Attribute = "job_title"
	AttrManagerIdentifier   Attribute = "manager_mailbox_identifier"
	AttrSubOrganizationSize Attribute = "sub_organization_size"
	AttrDepth               Attribute = "depth"
	AttrSubordinates        Attribute = "subordinates"
)

type attrKind int

const (
	kindText attrKind = iota
	kindNumber
	kindCollection
)

type accessor struct {
	kind    attrKind
	text    func(Employee) string
	number  func(Employee) int
	members func(Employee) []string
}

var accessors = map[Attribute]accessor{
	AttrUserFullName:        {kind: kindText, text: func(e Employee) string { return e.UserFullName }},
	AttrMailboxIdentifier:   {kind: kindText, text: func(e Employee) string { return e.MailboxIdentifier }},
	AttrDepartmentID:        {kind: kindNumber, number: func(e Employee) int { return e.DepartmentID }},
	AttrDepartmentName:      {kind: kindText, text: func(e Employee) string { return e.DepartmentName }},
	AttrJobTitle:            {kind: kindText, text: func(e Employee) string { return e.JobTitle }},
	AttrManagerIdentifier:   {kind: kindText, text: func(e Employee) string { return e.ManagerMailboxIdentifier }},
	AttrSubOrganizationSize: {kind: kindNumber, number: func(e Employee) int { return e.SubOrganizationSize }},
	AttrDepth:               {kind: kindNumber, number: func(e Employee) int { return e.Depth }},
	AttrSubordinates:        {kind: kindCollection, members: func(e Employee) []string { return e.Subordinates }},
}

// Attributes lists every queryable attribute in a stable order.
func Attributes() []Attribute {
	out := make([]Attribute, 0, len(accessors))
	for a := range accessors {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

func ParseAttribute(name string) (Attribute, error) {
	a := Attribute(strings.TrimSpace(name))
	if _, ok := accessors[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAttribute, name)
	}
	return a, nil
}

// Value returns the attribute as a Go value: string, int or []string.
func (e Employee) Value(a Attribute) (any, bool) {
	acc, ok := accessors[a]
	if !ok {
		return nil, false
	}
	switch acc.kind {
	case kindNumber:
		return acc.number(e), true
	case kindCollection:
		return slices.Clone(acc.members(e)), true
	default:
		return acc.text(e), true
	}
}

// equals compares with numbers rendered in decimal. Unknown attributes and
// collections never equal a scalar value.
func (e Employee) equals(a Attribute, value string) bool {
	acc, ok := accessors[a]
	if !ok {
		return false
	}
	switch acc.kind {
	case kindText:
		return acc.text(e) == value
	case kindNumber:
		return strconv.Itoa(acc.number(e)) == value
	default:
		return false
	}
}

// contains is substring for text and membership for collections.
func (e Employee) contains(a Attribute, value string) (bool, error) {
	acc, ok := accessors[a]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidAttribute, a)
	}
	switch acc.kind {
	case kindText:
		return strings.Contains(acc.text(e), value), nil
	case kindCollection:
		return slices.Contains(acc.members(e), value), nil
	default:
		return false, fmt.Errorf("%w: %s does not support partial match", ErrUnsupportedFilterValue, a)
	}
}

func comparatorFor(a Attribute) (func(x, y Employee) int, error) {
	acc, ok := accessors[a]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAttribute, a)
	}
	switch acc.kind {
	case kindText:
		return func(x, y Employee) int { return cmp.Compare(acc.text(x), acc.text(y)) }, nil
	case kindNumber:
		return func(x, y Employee) int { return cmp.Compare(acc.number(x), acc.number(y)) }, nil
	default:
		return nil, fmt.Errorf("%w: %s is not orderable", ErrInvalidAttribute, a)
	}
}
