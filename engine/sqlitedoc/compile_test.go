package sqlitedoc

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbstore/query"
	"github.com/roach88/dbstore/update"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func render(stmt statement) []byte {
	var b bytes.Buffer
	b.WriteString(stmt.SQL)
	b.WriteString("\n")
	for i, a := range stmt.Args {
		fmt.Fprintf(&b, "$%d = %#v\n", i+1, a)
	}
	return b.Bytes()
}

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestCompileGolden(t *testing.T) {
	g := newGoldie(t)

	tests := []struct {
		name string
		q    *query.Query
	}{
		{"find_eq_sorted", query.New(query.Eq("name", "ann")).Desc("age").Page(0, 10)},
		{"find_nin_empty", query.New(query.Nin("tags"))},
		{"find_contains_sanitized", query.New(query.Contains("bio", "(unclosed"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := compileFind("users", tt.q, discard)
			require.NoError(t, err)
			g.Assert(t, tt.name, render(stmt))
		})
	}
}

func TestCompileUpdateGolden(t *testing.T) {
	g := newGoldie(t)

	stmt, applied, err := compileUpdate("users", "u1", []update.FieldUpdate{
		update.Set("name", "bob"),
		update.Inc("visits", 1),
		update.Unset("tmp"),
	}, discard)
	require.NoError(t, err)
	require.True(t, applied)
	g.Assert(t, "update_combined", render(stmt))
}

// sampleValue returns a value accepted by every comparator.
func sampleCriterion(cmp query.Comparator) *query.Criterion {
	switch cmp {
	case query.IN, query.NIN, query.ALL:
		return &query.Criterion{Field: "f", Comparator: cmp, Value: []any{"a", 1, true, nil, map[string]any{"k": 1}}}
	case query.ELEM_MATCH:
		return query.ElemMatch("f", query.And(query.Eq("k", 1), query.Contains("n", "x")))
	case query.CONTAINS:
		return query.Contains("f", "x")
	default:
		return &query.Criterion{Field: "f", Comparator: cmp, Value: 3}
	}
}

func TestCompileEveryComparator(t *testing.T) {
	for _, cmp := range query.Comparators() {
		t.Run(string(cmp), func(t *testing.T) {
			stmt, err := compileFind("c", query.New(sampleCriterion(cmp)), discard)
			require.NoError(t, err)
			assert.Equal(t, strings.Count(stmt.SQL, "?"), len(stmt.Args), stmt.SQL)
		})
	}
}

func TestCompilePlaceholderOrder(t *testing.T) {
	q := query.New(query.Or(
		query.In("f", "x", []any{1, 2}, nil),
		query.And(query.Gte("n", 2.5), query.Ne("s", "y")),
		query.All("tags", "a", "b"),
		query.ElemMatch("items", query.Lt("qty", 3)),
	)).Asc("n").Page(5, 0)

	stmt, err := compileFind("c", q, discard)
	require.NoError(t, err)
	assert.Equal(t, strings.Count(stmt.SQL, "?"), len(stmt.Args))

	// The composite IN value is compared as a whole before the element scan.
	assert.Equal(t, []any{"c", "[1,2]", "x", "[1,2]", 2.5, "y", "a", "b", int64(3), 5}, stmt.Args)
	assert.Contains(t, stmt.SQL, "LIMIT -1 OFFSET ?")
}

func TestCompileMatchAll(t *testing.T) {
	for name, q := range map[string]*query.Query{
		"nil query":   nil,
		"nil filter":  query.Everything(),
		"empty group": query.New(query.And()),
		"no field":    query.New(&query.Criterion{Comparator: query.EQ, Value: 1}),
	} {
		t.Run(name, func(t *testing.T) {
			stmt, err := compileFind("c", q, discard)
			require.NoError(t, err)
			assert.Equal(t, "SELECT d.data FROM documents AS d WHERE d.collection = ? AND (1 = 1)", stmt.SQL)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	_, err := compileFind("c", query.New(&query.Criterion{Field: "f", Comparator: "LIKE", Value: 1}), discard)
	assert.ErrorIs(t, err, query.ErrUnsupported)

	_, err = compileFind("c", query.New(&query.Group{Operator: "XOR", Nodes: []query.Node{query.Eq("a", 1)}}), discard)
	assert.ErrorIs(t, err, query.ErrUnsupported)

	_, err = compileFind("c", query.New(&query.Criterion{Field: "f", Comparator: query.ELEM_MATCH, Value: "x"}), discard)
	assert.ErrorIs(t, err, query.ErrInvalid)

	_, err = compileFind("c", query.New(query.Lt("f", []int{1})), discard)
	assert.ErrorIs(t, err, query.ErrInvalid)
}

func TestCompileUpdateEveryOperation(t *testing.T) {
	for _, op := range update.Operations() {
		t.Run(string(op), func(t *testing.T) {
			u := update.FieldUpdate{Field: "f", Op: op, Value: 2}
			if op == update.RENAME {
				u.Value = "g"
			}
			stmt, applied, err := compileUpdate("c", "id", []update.FieldUpdate{u}, discard)
			require.NoError(t, err)
			assert.True(t, applied)
			assert.Equal(t, strings.Count(stmt.SQL, "?"), len(stmt.Args), stmt.SQL)
			assert.Equal(t, []any{"c", "id"}, stmt.Args[len(stmt.Args)-2:])
		})
	}
}

func TestCompileUpdateSkipsUnknown(t *testing.T) {
	_, applied, err := compileUpdate("c", "id", []update.FieldUpdate{
		{Field: "f", Op: "SQUARE", Value: 2},
		{Field: "", Op: update.SET, Value: 1},
		update.Rename("f", ""),
	}, discard)
	require.NoError(t, err)
	assert.False(t, applied)

	stmt, applied, err := compileUpdate("c", "id", []update.FieldUpdate{
		{Field: "f", Op: "SQUARE", Value: 2},
		update.Set("g", true),
	}, discard)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []any{"true", "c", "id"}, stmt.Args)
}

func TestCompileUpdateRejectsNonNumeric(t *testing.T) {
	_, _, err := compileUpdate("c", "id", []update.FieldUpdate{update.Inc("n", "one")}, discard)
	assert.Error(t, err)
}

func TestJSONPath(t *testing.T) {
	assert.Equal(t, `'$."a"'`, jsonPath("a"))
	assert.Equal(t, `'$."a"."b"'`, jsonPath("a.b"))
	assert.Equal(t, `'$."tags"[0]'`, jsonPath("tags.0"))
	assert.Equal(t, `'$."it''s"'`, jsonPath("it's"))
}

func TestNormalize(t *testing.T) {
	type named string

	v, err := normalize(named("x"))
	require.NoError(t, err)
	assert.Equal(t, kindText, v.kind)
	assert.Equal(t, "x", v.sql)

	v, err = normalize(uint8(7))
	require.NoError(t, err)
	assert.Equal(t, kindNumber, v.kind)
	assert.Equal(t, int64(7), v.sql)

	v, err = normalize(1.5)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v.sql)

	v, err = normalize(false)
	require.NoError(t, err)
	assert.Equal(t, kindBool, v.kind)
	assert.Equal(t, "false", v.json)

	v, err = normalize(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, kindComposite, v.kind)
	assert.Equal(t, `{"a":1,"b":2}`, v.sql)
}
