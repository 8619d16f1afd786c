package query

// New returns a query over filter with no ordering and no pagination.
func New(filter Node) *Query {
	return &Query{Filter: filter}
}

// Everything returns a query matching every document.
func Everything() *Query {
	return &Query{}
}

// Asc appends an ascending sort on field.
func (q *Query) Asc(field string) *Query {
	q.OrderBy = append(q.OrderBy, Order{Field: field, Ascending: true})
	return q
}

// Desc appends a descending sort on field.
func (q *Query) Desc(field string) *Query {
	q.OrderBy = append(q.OrderBy, Order{Field: field, Ascending: false})
	return q
}

// Page sets skip and limit.
func (q *Query) Page(skip, limit int) *Query {
	q.Skip = skip
	q.Limit = limit
	return q
}

// FilterOnly returns a copy of q without ordering or pagination.
// A nil receiver yields Everything.
func (q *Query) FilterOnly() *Query {
	if q == nil {
		return Everything()
	}
	return &Query{Filter: q.Filter}
}

// Window returns the effective skip and limit. hasLimit is false when the
// limit is <= 0 or Unbounded. Negative skips are clamped to zero.
func (q *Query) Window() (skip, limit int, hasLimit bool) {
	if q == nil {
		return 0, 0, false
	}
	skip = max(q.Skip, 0)
	if q.Limit <= 0 || q.Limit == Unbounded {
		return skip, 0, false
	}
	return skip, q.Limit, true
}

// ByID returns a filter matching the document with the given id.
func ByID(id string) Node {
	return Eq("_id", id)
}

func leaf(field string, cmp Comparator, value any) *Criterion {
	return &Criterion{Field: field, Comparator: cmp, Value: value}
}

func Eq(field string, value any) *Criterion  { return leaf(field, EQ, value) }
func Ne(field string, value any) *Criterion  { return leaf(field, NE, value) }
func Lt(field string, value any) *Criterion  { return leaf(field, LT, value) }
func Lte(field string, value any) *Criterion { return leaf(field, LTE, value) }
func Gt(field string, value any) *Criterion  { return leaf(field, GT, value) }
func Gte(field string, value any) *Criterion { return leaf(field, GTE, value) }

// In matches documents whose field equals any of values.
func In(field string, values ...any) *Criterion { return leaf(field, IN, values) }

// Nin matches documents whose field equals none of values. With no values
// it matches documents where field does not exist.
func Nin(field string, values ...any) *Criterion { return leaf(field, NIN, values) }

// Exists matches documents that have field.
func Exists(field string) *Criterion { return leaf(field, EXISTS, true) }

// Contains matches string fields against a case-insensitive pattern.
func Contains(field, pattern string) *Criterion { return leaf(field, CONTAINS, pattern) }

// ElemMatch matches documents where at least one element of the array field
// satisfies node.
func ElemMatch(field string, node Node) *Criterion { return leaf(field, ELEM_MATCH, node) }

// All matches array fields containing every one of values.
func All(field string, values ...any) *Criterion { return leaf(field, ALL, values) }

// And combines nodes so that all must match.
func And(nodes ...Node) *Group { return &Group{Operator: AND, Nodes: nodes} }

// Or combines nodes so that at least one must match.
func Or(nodes ...Node) *Group { return &Group{Operator: OR, Nodes: nodes} }
