package query

import (
	"fmt"
	"regexp"

	"github.com/goccy/go-reflect"
)

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Values flattens a collection value into a slice. A nil value yields an
// empty slice; a non-collection value yields a one-element slice. Byte
// slices are treated as scalars.
func Values(v any) []any {
	switch vs := v.(type) {
	case nil:
		return nil
	case []any:
		return vs
	case []byte:
		return []any{vs}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	default:
		return []any{v}
	}
}

// ContainsPattern validates a CONTAINS pattern. Matching is always case
// insensitive; engines add the flag their own way. If pattern does not
// compile, every non-word, non-space character is stripped and the result
// is returned instead; sanitized reports whether that happened. The
// returned pattern always compiles.
func ContainsPattern(pattern string) (p string, sanitized bool) {
	if _, err := regexp.Compile("(?i)" + pattern); err == nil {
		return pattern, false
	}
	return nonWord.ReplaceAllString(pattern, ""), true
}

// ContainsValue extracts the pattern string from a CONTAINS value.
func ContainsValue(v any) (string, error) {
	switch p := v.(type) {
	case string:
		return p, nil
	case fmt.Stringer:
		return p.String(), nil
	case nil:
		return "", fmt.Errorf("%w: CONTAINS requires a pattern", ErrInvalid)
	default:
		return fmt.Sprint(p), nil
	}
}

// ElemMatchNode extracts the nested node of an ELEM_MATCH criterion.
func ElemMatchNode(c *Criterion) (Node, error) {
	switch n := c.Value.(type) {
	case Node:
		return n, nil
	case *Query:
		if n != nil && n.Filter != nil {
			return n.Filter, nil
		}
	}
	return nil, fmt.Errorf("%w: ELEM_MATCH on %q requires a nested query", ErrInvalid, c.Field)
}
