package sqlitedoc

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/dbstore/query"
)

// statement is a compiled SQL statement with its positional parameters.
type statement struct {
	SQL  string
	Args []any
}

// compiler translates query trees into SQL over JSON documents.
//
// Values are always parameterized. Field paths and collection names appear
// as quoted literals because SQLite only matches expression indexes whose
// JSON path is a literal.
//
// Comparisons apply element-wise when the field holds an array: a criterion
// on field "tags" matches a document whose "tags" is "x" or contains "x".
// This is done with json_each, which yields a single row for a scalar and
// one row per element for an array. Object-valued fields are excluded so
// their members are never compared.
type compiler struct {
	args []any

	// aliases numbers json_each aliases so nested ELEM_MATCH scopes do not
	// collide.
	aliases int
	log     *slog.Logger
}

func newCompiler(log *slog.Logger) *compiler {
	if log == nil {
		log = slog.Default()
	}
	return &compiler{log: log}
}

// arg records a parameter and returns its placeholder.
func (c *compiler) arg(v any) string {
	c.args = append(c.args, v)
	return "?"
}

func (c *compiler) alias() string {
	c.aliases++
	return fmt.Sprintf("e%d", c.aliases)
}

// compileFind builds the SELECT for a find over one collection.
func compileFind(collection string, q *query.Query, log *slog.Logger) (statement, error) {
	c := newCompiler(log)

	var b strings.Builder
	b.WriteString("SELECT d.data FROM documents AS d WHERE d.collection = ")
	b.WriteString(c.arg(collection))

	var filter query.Node
	if q != nil {
		filter = q.Filter
	}
	where, err := c.node("d.data", filter)
	if err != nil {
		return statement{}, err
	}
	b.WriteString(" AND (" + where + ")")

	if q != nil && len(q.OrderBy) > 0 {
		keys := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			dir := "DESC"
			if o.Ascending {
				dir = "ASC"
			}
			keys = append(keys, fmt.Sprintf("json_extract(d.data, %s) %s", jsonPath(o.Field), dir))
		}
		b.WriteString(" ORDER BY " + strings.Join(keys, ", "))
	}

	skip, limit, hasLimit := q.Window()
	switch {
	case hasLimit:
		b.WriteString(" LIMIT " + c.arg(limit) + " OFFSET " + c.arg(skip))
	case skip > 0:
		// SQLite requires LIMIT before OFFSET; -1 is "no limit".
		b.WriteString(" LIMIT -1 OFFSET " + c.arg(skip))
	}

	return statement{SQL: b.String(), Args: c.args}, nil
}

// compileCount builds the COUNT for a filter over one collection.
func compileCount(collection string, filter query.Node, log *slog.Logger) (statement, error) {
	c := newCompiler(log)
	head := "SELECT COUNT(*) FROM documents AS d WHERE d.collection = " + c.arg(collection)
	where, err := c.node("d.data", filter)
	if err != nil {
		return statement{}, err
	}
	return statement{SQL: head + " AND (" + where + ")", Args: c.args}, nil
}

// node compiles n against the JSON expression src.
// A nil node, an empty group and a criterion without a field match
// everything.
func (c *compiler) node(src string, n query.Node) (string, error) {
	switch n := n.(type) {
	case nil:
		return "1 = 1", nil
	case *query.Criterion:
		if n.MatchesAll() {
			return "1 = 1", nil
		}
		return c.criterion(src, n)
	case *query.Group:
		if n.MatchesAll() {
			return "1 = 1", nil
		}
		return c.group(src, n)
	default:
		return "", fmt.Errorf("%w: node type %T", query.ErrUnsupported, n)
	}
}

func (c *compiler) group(src string, g *query.Group) (string, error) {
	var sep string
	switch g.Operator {
	case query.AND:
		sep = " AND "
	case query.OR:
		sep = " OR "
	default:
		return "", fmt.Errorf("%w: operator %q", query.ErrUnsupported, g.Operator)
	}

	parts := make([]string, 0, len(g.Nodes))
	for _, child := range g.Nodes {
		sql, err := c.node(src, child)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+sql+")")
	}
	return strings.Join(parts, sep), nil
}

func (c *compiler) criterion(src string, cr *query.Criterion) (string, error) {
	path := jsonPath(cr.Field)

	switch cr.Comparator {
	case query.EQ:
		return c.equals(src, path, cr.Value)

	case query.NE:
		eq, err := c.equals(src, path, cr.Value)
		if err != nil {
			return "", err
		}
		return "NOT (" + eq + ")", nil

	case query.LT:
		return c.ordered(src, path, "<", cr.Value)
	case query.LTE:
		return c.ordered(src, path, "<=", cr.Value)
	case query.GT:
		return c.ordered(src, path, ">", cr.Value)
	case query.GTE:
		return c.ordered(src, path, ">=", cr.Value)

	case query.IN:
		return c.in(src, path, query.Values(cr.Value))

	case query.NIN:
		values := query.Values(cr.Value)
		if len(values) == 0 {
			// Legacy: an empty NIN means the field is absent.
			return missing(src, path), nil
		}
		in, err := c.in(src, path, values)
		if err != nil {
			return "", err
		}
		return "NOT (" + in + ")", nil

	case query.EXISTS:
		// The value is ignored; EXISTS always asserts presence.
		return fmt.Sprintf("json_type(%s, %s) IS NOT NULL", src, path), nil

	case query.CONTAINS:
		pattern, err := query.ContainsValue(cr.Value)
		if err != nil {
			return "", err
		}
		p, sanitized := query.ContainsPattern(pattern)
		if sanitized {
			c.log.Warn("invalid contains pattern, matching sanitized literal",
				"field", cr.Field, "pattern", pattern, "sanitized", p)
		}
		e := c.alias()
		return c.anyElement(src, path, e,
			fmt.Sprintf("%s.type = 'text' AND %s.value REGEXP %s", e, e, c.arg("(?i)"+p))), nil

	case query.ALL:
		values := query.Values(cr.Value)
		if len(values) == 0 {
			return "1 = 0", nil
		}
		parts := make([]string, 0, len(values))
		for _, v := range values {
			eq, err := c.equals(src, path, v)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+eq+")")
		}
		return strings.Join(parts, " AND "), nil

	case query.ELEM_MATCH:
		nested, err := query.ElemMatchNode(cr)
		if err != nil {
			return "", err
		}
		e := c.alias()
		head := fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s, %s) AS %s WHERE json_type(%s, %s) = 'array' AND ",
			src, path, e, src, path)
		inner, err := c.node(e+".value", nested)
		if err != nil {
			return "", err
		}
		// CASE keeps json functions away from non-object elements.
		return head + fmt.Sprintf("CASE WHEN %s.type = 'object' THEN (%s) ELSE 0 END)", e, inner), nil

	default:
		return "", fmt.Errorf("%w: comparator %q", query.ErrUnsupported, cr.Comparator)
	}
}

// equals matches a field equal to v, or an array field containing v.
// nil matches a missing or null field.
func (c *compiler) equals(src, path string, v any) (string, error) {
	val, err := normalize(v)
	if err != nil {
		return "", err
	}
	if val.kind == kindNull {
		return fmt.Sprintf("json_type(%s, %s) IS NULL OR json_type(%s, %s) = 'null'", src, path, src, path), nil
	}

	e := c.alias()
	if val.kind == kindComposite {
		whole := fmt.Sprintf("(%s -> %s) = json(%s)", src, path, c.arg(val.json))
		return whole + " OR " + c.anyElement(src, path, e, c.elemEquals(e, val)), nil
	}
	return c.anyElement(src, path, e, c.elemEquals(e, val)), nil
}

// elemEquals is the per-element equality test for a json_each alias.
func (c *compiler) elemEquals(e string, val value) string {
	switch val.kind {
	case kindNull:
		return e + ".type = 'null'"
	case kindBool:
		if val.sql == int64(1) {
			return e + ".type = 'true'"
		}
		return e + ".type = 'false'"
	case kindComposite:
		return fmt.Sprintf("%s.type IN (%s) AND %s.value = json(%s)", e, val.kind.jsonTypes(), e, c.arg(val.json))
	default:
		return fmt.Sprintf("%s.type IN (%s) AND %s.value = %s", e, val.kind.jsonTypes(), e, c.arg(val.sql))
	}
}

// ordered compiles LT/LTE/GT/GTE. Only values of the same type family
// compare.
func (c *compiler) ordered(src, path, op string, v any) (string, error) {
	val, err := normalize(v)
	if err != nil {
		return "", err
	}
	switch val.kind {
	case kindNull:
		if op == "<=" || op == ">=" {
			return c.equals(src, path, nil)
		}
		return "1 = 0", nil
	case kindComposite:
		return "", fmt.Errorf("%w: ordering comparison against %s", query.ErrInvalid, val.json)
	}

	e := c.alias()
	return c.anyElement(src, path, e,
		fmt.Sprintf("%s.type IN (%s) AND %s.value %s %s", e, val.kind.jsonTypes(), e, op, c.arg(val.sql))), nil
}

// in matches a field equal to any of values. An empty list matches nothing.
func (c *compiler) in(src, path string, values []any) (string, error) {
	if len(values) == 0 {
		return "1 = 0", nil
	}

	vals := make([]value, 0, len(values))
	for _, v := range values {
		val, err := normalize(v)
		if err != nil {
			return "", err
		}
		vals = append(vals, val)
	}

	// Placeholders must be recorded in the order they appear in the SQL:
	// whole-field comparisons first, then the element scan.
	var parts []string
	for _, val := range vals {
		switch val.kind {
		case kindNull:
			parts = append(parts, missing(src, path), fmt.Sprintf("json_type(%s, %s) = 'null'", src, path))
		case kindComposite:
			parts = append(parts, fmt.Sprintf("(%s -> %s) = json(%s)", src, path, c.arg(val.json)))
		}
	}

	e := c.alias()
	var elems []string
	for _, val := range vals {
		if val.kind == kindNull {
			continue
		}
		elems = append(elems, "("+c.elemEquals(e, val)+")")
	}
	if len(elems) > 0 {
		parts = append(parts, c.anyElement(src, path, e, strings.Join(elems, " OR ")))
	}
	return strings.Join(parts, " OR "), nil
}

// anyElement wraps cond in an EXISTS over the field's elements. cond must
// reference the alias e.
func (c *compiler) anyElement(src, path, e, cond string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s, %s) AS %s WHERE json_type(%s, %s) <> 'object' AND %s)",
		src, path, e, src, path, cond)
}

func missing(src, path string) string {
	return fmt.Sprintf("json_type(%s, %s) IS NULL", src, path)
}
