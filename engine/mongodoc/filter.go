package mongodoc

import (
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/dbstore/query"
)

var comparisonOps = map[query.Comparator]string{
	query.EQ:  "$eq",
	query.NE:  "$ne",
	query.LT:  "$lt",
	query.LTE: "$lte",
	query.GT:  "$gt",
	query.GTE: "$gte",
}

// translateFilter converts a query tree into a BSON filter. A nil node, an
// empty group and a criterion without a field yield the empty filter.
func translateFilter(n query.Node, log *slog.Logger) (bson.D, error) {
	switch n := n.(type) {
	case nil:
		return bson.D{}, nil
	case *query.Criterion:
		if n.MatchesAll() {
			return bson.D{}, nil
		}
		return translateCriterion(n, log)
	case *query.Group:
		if n.MatchesAll() {
			return bson.D{}, nil
		}
		return translateGroup(n, log)
	default:
		return nil, fmt.Errorf("%w: node type %T", query.ErrUnsupported, n)
	}
}

func translateGroup(g *query.Group, log *slog.Logger) (bson.D, error) {
	var op string
	switch g.Operator {
	case query.AND:
		op = "$and"
	case query.OR:
		op = "$or"
	default:
		return nil, fmt.Errorf("%w: operator %q", query.ErrUnsupported, g.Operator)
	}

	parts := make(bson.A, 0, len(g.Nodes))
	for _, child := range g.Nodes {
		f, err := translateFilter(child, log)
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}
	return bson.D{{Key: op, Value: parts}}, nil
}

func translateCriterion(c *query.Criterion, log *slog.Logger) (bson.D, error) {
	field := func(op string, v any) bson.D {
		return bson.D{{Key: c.Field, Value: bson.D{{Key: op, Value: v}}}}
	}

	if op, ok := comparisonOps[c.Comparator]; ok {
		v, err := bsonValue(c.Value)
		if err != nil {
			return nil, err
		}
		return field(op, v), nil
	}

	switch c.Comparator {
	case query.IN:
		vs, err := bsonValues(query.Values(c.Value))
		if err != nil {
			return nil, err
		}
		return field("$in", vs), nil

	case query.NIN:
		values := query.Values(c.Value)
		if len(values) == 0 {
			// Legacy: an empty NIN means the field is absent.
			return field("$exists", false), nil
		}
		vs, err := bsonValues(values)
		if err != nil {
			return nil, err
		}
		return field("$nin", vs), nil

	case query.EXISTS:
		// The value is ignored; EXISTS always asserts presence.
		return field("$exists", true), nil

	case query.CONTAINS:
		pattern, err := query.ContainsValue(c.Value)
		if err != nil {
			return nil, err
		}
		p, sanitized := query.ContainsPattern(pattern)
		if sanitized {
			log.Warn("invalid contains pattern, matching sanitized literal",
				"field", c.Field, "pattern", pattern, "sanitized", p)
		}
		return field("$regex", primitive.Regex{Pattern: p, Options: "i"}), nil

	case query.ALL:
		vs, err := bsonValues(query.Values(c.Value))
		if err != nil {
			return nil, err
		}
		return field("$all", vs), nil

	case query.ELEM_MATCH:
		nested, err := query.ElemMatchNode(c)
		if err != nil {
			return nil, err
		}
		inner, err := translateFilter(nested, log)
		if err != nil {
			return nil, err
		}
		return field("$elemMatch", inner), nil

	default:
		return nil, fmt.Errorf("%w: comparator %q", query.ErrUnsupported, c.Comparator)
	}
}

// translateSort converts an ordering into a sort document, or nil when
// there is none.
func translateSort(orders []query.Order) bson.D {
	if len(orders) == 0 {
		return nil
	}
	sort := make(bson.D, 0, len(orders))
	for _, o := range orders {
		dir := -1
		if o.Ascending {
			dir = 1
		}
		sort = append(sort, bson.E{Key: o.Field, Value: dir})
	}
	return sort
}
