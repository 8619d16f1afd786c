package sqlitedoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// kind is the JSON type family of a query or update value.
type kind int

const (
	kindNull kind = iota
	kindBool
	kindNumber
	kindText
	kindComposite
)

// jsonTypes returns the json_each/json_type names belonging to the family.
func (k kind) jsonTypes() string {
	switch k {
	case kindNull:
		return "'null'"
	case kindBool:
		return "'true', 'false'"
	case kindNumber:
		return "'integer', 'real'"
	case kindText:
		return "'text'"
	default:
		return "'array', 'object'"
	}
}

// value is a Go value normalized the way it is stored: through
// encoding/json, so named types, time.Time and custom marshalers compare
// the same way they were persisted.
type value struct {
	kind kind
	// sql is the parameter compared against json_each.value or
	// json_extract results. Booleans are 0/1, composites are JSON text.
	sql any
	// json is the JSON encoding used when the value is written.
	json string
}

func normalize(v any) (value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return value{}, fmt.Errorf("encode value %v: %w", v, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return value{}, fmt.Errorf("decode value %s: %w", raw, err)
	}

	out := value{json: string(raw)}
	switch x := decoded.(type) {
	case nil:
		out.kind = kindNull
	case bool:
		out.kind = kindBool
		if x {
			out.sql = int64(1)
		} else {
			out.sql = int64(0)
		}
	case json.Number:
		out.kind = kindNumber
		out.sql = numberParam(x)
	case string:
		out.kind = kindText
		out.sql = x
	default:
		out.kind = kindComposite
		out.sql = string(raw)
	}
	return out, nil
}

func numberParam(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	f, _ := n.Float64()
	return f
}
