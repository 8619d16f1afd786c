package mongodoc

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/dbstore/engine"
)

// toBSON parses a JSON document and sets its "_id" to id, first.
func toBSON(doc engine.Document, id string) (bson.D, error) {
	var fields bson.D
	if len(doc) > 0 {
		if err := bson.UnmarshalExtJSON(doc, false, &fields); err != nil {
			return nil, fmt.Errorf("document %s is not a JSON object: %w", id, err)
		}
	}

	out := make(bson.D, 0, len(fields)+1)
	out = append(out, bson.E{Key: engine.IDField, Value: id})
	for _, f := range fields {
		if f.Key != engine.IDField {
			out = append(out, f)
		}
	}
	return out, nil
}

// fromBSON renders a decoded document as JSON.
func fromBSON(m bson.M) (engine.Document, error) {
	data, err := json.Marshal(plain(m))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return engine.Document(data), nil
}

// plain replaces BSON container types with maps and slices so that
// encoding/json renders them as objects and arrays.
func plain(v any) any {
	switch x := v.(type) {
	case bson.M:
		return plainMap(x)
	case map[string]any:
		return plainMap(x)
	case bson.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = plain(e.Value)
		}
		return m
	case bson.A:
		return plainSlice(x)
	case []any:
		return plainSlice(x)
	default:
		return x
	}
}

func plainMap(in map[string]any) map[string]any {
	m := make(map[string]any, len(in))
	for k, v := range in {
		m[k] = plain(v)
	}
	return m
}

func plainSlice(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = plain(v)
	}
	return out
}

// bsonValue converts a query or update operand through its JSON form, so
// that it is stored and compared exactly as the same value inside a saved
// document.
func bsonValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value %v: %w", v, err)
	}
	var wrapped bson.D
	if err := bson.UnmarshalExtJSON(append(append([]byte(`{"v":`), raw...), '}'), false, &wrapped); err != nil {
		return nil, fmt.Errorf("convert value %s: %w", raw, err)
	}
	if len(wrapped) != 1 {
		return nil, fmt.Errorf("convert value %s: unexpected shape", raw)
	}
	return wrapped[0].Value, nil
}

func bsonValues(vs []any) (bson.A, error) {
	out := make(bson.A, 0, len(vs))
	for _, v := range vs {
		bv, err := bsonValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, bv)
	}
	return out, nil
}
