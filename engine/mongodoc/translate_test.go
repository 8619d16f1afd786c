package mongodoc

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/dbstore/engine"
	"github.com/roach88/dbstore/query"
	"github.com/roach88/dbstore/update"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestTranslateFilter(t *testing.T) {
	tests := []struct {
		name string
		node query.Node
		want bson.D
	}{
		{"nil", nil, bson.D{}},
		{"empty field", query.Eq("", "x"), bson.D{}},
		{"empty group", query.And(), bson.D{}},
		{"eq", query.Eq("name", "ann"), bson.D{{Key: "name", Value: bson.D{{Key: "$eq", Value: "ann"}}}}},
		{"ne", query.Ne("age", 30), bson.D{{Key: "age", Value: bson.D{{Key: "$ne", Value: int32(30)}}}}},
		{"lt", query.Lt("age", 2.5), bson.D{{Key: "age", Value: bson.D{{Key: "$lt", Value: 2.5}}}}},
		{"lte", query.Lte("age", 30), bson.D{{Key: "age", Value: bson.D{{Key: "$lte", Value: int32(30)}}}}},
		{"gt", query.Gt("n", int64(5000000000)), bson.D{{Key: "n", Value: bson.D{{Key: "$gt", Value: int64(5000000000)}}}}},
		{"gte", query.Gte("ok", true), bson.D{{Key: "ok", Value: bson.D{{Key: "$gte", Value: true}}}}},
		{"eq nil", query.Eq("x", nil), bson.D{{Key: "x", Value: bson.D{{Key: "$eq", Value: nil}}}}},
		{
			"in",
			query.In("tags", "a", "b"),
			bson.D{{Key: "tags", Value: bson.D{{Key: "$in", Value: bson.A{"a", "b"}}}}},
		},
		{
			"nin",
			query.Nin("tags", "a"),
			bson.D{{Key: "tags", Value: bson.D{{Key: "$nin", Value: bson.A{"a"}}}}},
		},
		{
			"nin empty is not exists",
			query.Nin("tags"),
			bson.D{{Key: "tags", Value: bson.D{{Key: "$exists", Value: false}}}},
		},
		{
			"exists ignores value",
			&query.Criterion{Field: "x", Comparator: query.EXISTS, Value: false},
			bson.D{{Key: "x", Value: bson.D{{Key: "$exists", Value: true}}}},
		},
		{
			"contains",
			query.Contains("bio", "smith"),
			bson.D{{Key: "bio", Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: "smith", Options: "i"}}}}},
		},
		{
			"contains sanitized",
			query.Contains("bio", "(unclosed"),
			bson.D{{Key: "bio", Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: "unclosed", Options: "i"}}}}},
		},
		{
			"all",
			query.All("tags", "a", "b"),
			bson.D{{Key: "tags", Value: bson.D{{Key: "$all", Value: bson.A{"a", "b"}}}}},
		},
		{
			"elem match",
			query.ElemMatch("items", query.And(query.Eq("sku", "x"), query.Gt("qty", 1))),
			bson.D{{Key: "items", Value: bson.D{{Key: "$elemMatch", Value: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "sku", Value: bson.D{{Key: "$eq", Value: "x"}}}},
				bson.D{{Key: "qty", Value: bson.D{{Key: "$gt", Value: int32(1)}}}},
			}}}}}}},
		},
		{
			"or of and",
			query.Or(query.Eq("a", 1), query.And(query.Eq("b", 2))),
			bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: int32(1)}}}},
				bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "b", Value: bson.D{{Key: "$eq", Value: int32(2)}}}},
				}}},
			}}},
		},
		{
			"composite value",
			query.Eq("addr", map[string]any{"city": "Oslo"}),
			bson.D{{Key: "addr", Value: bson.D{{Key: "$eq", Value: bson.D{{Key: "city", Value: "Oslo"}}}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := translateFilter(tt.node, discard)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateFilterErrors(t *testing.T) {
	_, err := translateFilter(&query.Criterion{Field: "x", Comparator: "LIKE", Value: 1}, discard)
	assert.ErrorIs(t, err, query.ErrUnsupported)

	_, err = translateFilter(&query.Group{Operator: "XOR", Nodes: []query.Node{query.Eq("a", 1)}}, discard)
	assert.ErrorIs(t, err, query.ErrUnsupported)

	_, err = translateFilter(&query.Criterion{Field: "x", Comparator: query.ELEM_MATCH, Value: 1}, discard)
	assert.ErrorIs(t, err, query.ErrInvalid)
}

func TestTranslateEveryComparator(t *testing.T) {
	for _, cmp := range query.Comparators() {
		var v any = "x"
		if cmp == query.ELEM_MATCH {
			v = query.Eq("a", 1)
		}
		_, err := translateFilter(&query.Criterion{Field: "f", Comparator: cmp, Value: v}, discard)
		assert.NoError(t, err, cmp)
	}
}

func TestTranslateSort(t *testing.T) {
	assert.Nil(t, translateSort(nil))

	q := query.Everything().Asc("name").Desc("age")
	assert.Equal(t, bson.D{{Key: "name", Value: 1}, {Key: "age", Value: -1}}, translateSort(q.OrderBy))
}

func TestTranslateUpdate(t *testing.T) {
	ups := []update.FieldUpdate{
		update.Set("name", "ann"),
		update.Inc("visits", 1),
		update.Set("address.city", "Oslo"),
		update.Unset("legacy"),
		update.Push("tags", "new"),
		update.Pull("tags", "old"),
		update.AddToSet("roles", "admin"),
		update.Mul("score", 1.5),
		update.Min("low", 3),
		update.Max("high", 9),
		update.Rename("nick", "alias"),
		update.SetOnInsert("created", "now"),
	}

	doc, applied, err := translateUpdate(ups, discard)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{{Key: "name", Value: "ann"}, {Key: "address.city", Value: "Oslo"}}},
		{Key: "$inc", Value: bson.D{{Key: "visits", Value: int32(1)}}},
		{Key: "$unset", Value: bson.D{{Key: "legacy", Value: ""}}},
		{Key: "$push", Value: bson.D{{Key: "tags", Value: "new"}}},
		{Key: "$pull", Value: bson.D{{Key: "tags", Value: "old"}}},
		{Key: "$addToSet", Value: bson.D{{Key: "roles", Value: "admin"}}},
		{Key: "$mul", Value: bson.D{{Key: "score", Value: 1.5}}},
		{Key: "$min", Value: bson.D{{Key: "low", Value: int32(3)}}},
		{Key: "$max", Value: bson.D{{Key: "high", Value: int32(9)}}},
		{Key: "$rename", Value: bson.D{{Key: "nick", Value: "alias"}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "created", Value: "now"}}},
	}, doc)
}

func TestTranslateUpdateSkips(t *testing.T) {
	doc, applied, err := translateUpdate([]update.FieldUpdate{
		{Field: "a", Op: "SQUARE", Value: 2},
		{Field: "", Op: update.SET, Value: 1},
		update.Rename("a", ""),
	}, discard)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, doc)

	_, applied, err = translateUpdate(nil, discard)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestTranslateUpdateRejectsNonNumeric(t *testing.T) {
	_, _, err := translateUpdate([]update.FieldUpdate{update.Inc("n", "one")}, discard)
	assert.ErrorIs(t, err, query.ErrInvalid)
}

func TestToBSONSetsIDFirst(t *testing.T) {
	d, err := toBSON(engine.Document(`{"name":"ann","_id":"stale","tags":["a"]}`), "u1")
	require.NoError(t, err)
	require.Len(t, d, 3)
	assert.Equal(t, bson.E{Key: "_id", Value: "u1"}, d[0])
	assert.Equal(t, "ann", d[1].Value)

	_, err = toBSON(engine.Document(`[1,2]`), "u1")
	assert.Error(t, err)
}

func TestFromBSON(t *testing.T) {
	doc, err := fromBSON(bson.M{
		"_id":  "u1",
		"age":  int32(30),
		"addr": bson.D{{Key: "city", Value: "Oslo"}},
		"tags": bson.A{"a", bson.M{"k": int64(2)}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"u1","age":30,"addr":{"city":"Oslo"},"tags":["a",{"k":2}]}`, string(doc))
}
