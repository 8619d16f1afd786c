package query

import (
	"errors"
	"math"
)

// Unbounded is the limit sentinel meaning "no limit". Any limit <= 0 is
// treated the same way.
const Unbounded = math.MaxInt32

var (
	// ErrInvalid reports a malformed query tree, such as IN with a
	// non-collection value or ELEM_MATCH without a nested node.
	ErrInvalid = errors.New("query: invalid")

	// ErrUnsupported is returned by translators for node types or
	// comparators they do not know.
	ErrUnsupported = errors.New("query: unsupported")
)

// Node is one element of a filter tree.
//
// This is a sealed interface - only *Criterion and *Group implement it.
type Node interface {
	queryNode() // Marker method - seals interface to this package
}

// Comparator is the operation a Criterion applies to its field.
type Comparator string

const (
	EQ         Comparator = "EQ"
	NE         Comparator = "NE"
	LT         Comparator = "LT"
	LTE        Comparator = "LTE"
	GT         Comparator = "GT"
	GTE        Comparator = "GTE"
	IN         Comparator = "IN"
	NIN        Comparator = "NIN"
	EXISTS     Comparator = "EXISTS"
	CONTAINS   Comparator = "CONTAINS"
	ELEM_MATCH Comparator = "ELEM_MATCH"
	ALL        Comparator = "ALL"
)

// Comparators returns the closed comparator set in declaration order.
func Comparators() []Comparator {
	return []Comparator{EQ, NE, LT, LTE, GT, GTE, IN, NIN, EXISTS, CONTAINS, ELEM_MATCH, ALL}
}

// Operator combines the children of a Group.
type Operator string

const (
	AND Operator = "AND"
	OR  Operator = "OR"
)

// Criterion is a leaf: Field <Comparator> Value.
//
// Value semantics per comparator:
//   - IN, NIN, ALL: a slice or array (a scalar counts as one element)
//   - EXISTS: ignored
//   - CONTAINS: a string pattern
//   - ELEM_MATCH: a Node evaluated against each array element
//
// Field is a dotted path; "_id" addresses the entity id.
type Criterion struct {
	Field      string
	Comparator Comparator
	Value      any
}

func (*Criterion) queryNode() {}

// MatchesAll reports whether the criterion has no field and therefore
// matches every document.
func (c *Criterion) MatchesAll() bool {
	return c == nil || c.Field == ""
}

// Group is a branch combining Nodes with AND or OR. An empty Group matches
// every document.
type Group struct {
	Operator Operator
	Nodes    []Node
}

func (*Group) queryNode() {}

// MatchesAll reports whether the group has no children.
func (g *Group) MatchesAll() bool {
	return g == nil || len(g.Nodes) == 0
}

// Order is one entry of a compound sort.
type Order struct {
	Field     string
	Ascending bool
}

// Query is a filter plus ordering and pagination.
//
// A nil Filter matches everything. An empty OrderBy leaves result order to
// the engine. Limit <= 0 or Unbounded means no limit.
type Query struct {
	Filter  Node
	OrderBy []Order
	Skip    int
	Limit   int
}
