package cli

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dbstore/query"
)

// ParseValue reads a command-line value as a YAML scalar or flow
// collection, so "5" is a number, "true" a bool and "[a, b]" a list.
// Dates stay strings. Anything YAML rejects is kept as the raw string.
func ParseValue(raw string) any {
	if raw == "" {
		return ""
	}
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &n); err != nil {
		return raw
	}
	keepTimestamps(&n)
	var v any
	if err := n.Decode(&v); err != nil {
		return raw
	}
	return v
}

// keepTimestamps retags timestamp scalars as strings so they decode to
// their text instead of time.Time.
func keepTimestamps(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!timestamp" {
		n.Tag = "!!str"
	}
	for _, c := range n.Content {
		keepTimestamps(c)
	}
}

// ParseFilter parses one "field<op>value" expression. Operators:
//
//	=   equal; a list value means IN
//	!=  not equal; a list value means NIN
//	<  <=  >  >=
//	~   case-insensitive pattern match (the value is not YAML-parsed)
//	?   the field exists (no value)
func ParseFilter(expr string) (query.Node, error) {
	i := strings.IndexAny(expr, "=!<>~?")
	if i <= 0 {
		return nil, fmt.Errorf("filter %q: expected field<op>value", expr)
	}
	field, rest := expr[:i], expr[i:]

	op := rest[:1]
	if len(rest) > 1 && rest[1] == '=' && strings.ContainsRune("!<>", rune(rest[0])) {
		op = rest[:2]
	}
	raw := rest[len(op):]

	switch op {
	case "?":
		if raw != "" {
			return nil, fmt.Errorf("filter %q: ? takes no value", expr)
		}
		return query.Exists(field), nil
	case "~":
		if raw == "" {
			return nil, fmt.Errorf("filter %q: empty pattern", expr)
		}
		return query.Contains(field, raw), nil
	}

	v := ParseValue(raw)
	list, isList := v.([]any)

	switch op {
	case "=":
		if isList {
			return query.In(field, list...), nil
		}
		return query.Eq(field, v), nil
	case "!=":
		if isList {
			return query.Nin(field, list...), nil
		}
		return query.Ne(field, v), nil
	case "<":
		return query.Lt(field, v), nil
	case "<=":
		return query.Lte(field, v), nil
	case ">":
		return query.Gt(field, v), nil
	case ">=":
		return query.Gte(field, v), nil
	default:
		return nil, fmt.Errorf("filter %q: unknown operator %q", expr, op)
	}
}

// ParseFilters ANDs every expression. No expressions match everything.
func ParseFilters(exprs []string) (query.Node, error) {
	nodes := make([]query.Node, 0, len(exprs))
	for _, e := range exprs {
		n, err := ParseFilter(e)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return nodes[0], nil
	default:
		return query.And(nodes...), nil
	}
}

// ParseSort reads "field" or "-field" keys, ascending unless prefixed.
func ParseSort(keys []string) ([]query.Order, error) {
	var order []query.Order
	for _, k := range keys {
		for _, part := range strings.Split(k, ",") {
			part = strings.TrimSpace(part)
			asc := true
			switch {
			case strings.HasPrefix(part, "-"):
				asc, part = false, part[1:]
			case strings.HasPrefix(part, "+"):
				part = part[1:]
			}
			if part == "" {
				return nil, fmt.Errorf("sort %q: empty field", k)
			}
			order = append(order, query.Order{Field: part, Ascending: asc})
		}
	}
	return order, nil
}

// splitAssign splits "field=value" for the update and metadata flags.
func splitAssign(flag, s string) (string, string, error) {
	field, value, ok := strings.Cut(s, "=")
	if !ok || field == "" {
		return "", "", fmt.Errorf("--%s %q: expected field=value", flag, s)
	}
	return field, value, nil
}
