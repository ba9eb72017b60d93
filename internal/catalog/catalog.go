// Package catalog holds the static lookup tables used when extracting
// calls: status codes and the unknown-user placeholders.
package catalog

import "sort"

// Status is one status group the export can contain.
type Status struct {
	Code  int
	Label string
}

// Catalog maps status codes to labels. It is immutable once built.
type Catalog struct {
	labels map[int]string
	order  []int
}

var defaultStatuses = map[int]string{
	1:  "Pending",
	2:  "Unassigned",
	3:  "Unaccepted",
	4:  "On Hold",
	5:  "Off Hold",
	6:  "Resolved",
	7:  "Deferred",
	8:  "Incoming",
	9:  "Escalated(O)",
	10: "Escalated(G)",
	11: "Escalated(A)",
	16: "Closed",
	17: "Cancelled",
	18: "Closed Chargeable",
}

// New builds a catalog from code → label pairs.
func New(labels map[int]string) *Catalog {
	c := &Catalog{
		labels: make(map[int]string, len(labels)),
		order:  make([]int, 0, len(labels)),
	}
	for code, label := range labels {
		c.labels[code] = label
		c.order = append(c.order, code)
	}
	sort.Ints(c.order)
	return c
}

// Default returns the catalog of the out-of-hours service.
func Default() *Catalog {
	return New(defaultStatuses)
}

// Statuses returns every entry in ascending code order, which is the
// order calls are extracted and sent in.
func (c *Catalog) Statuses() []Status {
	out := make([]Status, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, Status{Code: code, Label: c.labels[code]})
	}
	return out
}

// Label returns the label for code.
func (c *Catalog) Label(code int) (string, bool) {
	l, ok := c.labels[code]
	return l, ok
}

// Len returns the number of statuses.
func (c *Catalog) Len() int {
	return len(c.order)
}

var unknownUsers = map[string]string{
	"XY001": "Unknown Student",
	"XY002": "Unknown Staff",
	"XY003": "Unknown Unknown",
}

// ResolveRequester maps the placeholder customer ids to readable names.
// Any other id is returned unchanged; the bool reports a substitution.
func ResolveRequester(custID string) (string, bool) {
	if name, ok := unknownUsers[custID]; ok {
		return name, true
	}
	return custID, false
}
