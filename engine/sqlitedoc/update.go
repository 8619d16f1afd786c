package sqlitedoc

import (
	"fmt"
	"log/slog"

	"github.com/roach88/dbstore/update"
)

// compileUpdate folds ups into ONE UPDATE statement whose new document is a
// nested expression of json_set/json_remove calls.
//
// Every fragment reads the document as it was before the statement
// ("documents.data") and writes into the accumulated expression, so the
// operations see the same snapshot the way document-database update
// operators do, and the statement stays linear in the number of updates.
//
// Unknown operations are skipped with a warning. applied is false when no
// fragment remained.
func compileUpdate(collection, id string, ups []update.FieldUpdate, log *slog.Logger) (stmt statement, applied bool, err error) {
	c := newCompiler(log)
	expr := "documents.data"

	for _, u := range ups {
		if u.Field == "" {
			c.log.Warn("skipping update without field", "op", u.Op)
			continue
		}
		next, ok, err := c.fragment(expr, u)
		if err != nil {
			return statement{}, false, err
		}
		if !ok {
			continue
		}
		expr = next
		applied = true
	}
	if !applied {
		return statement{}, false, nil
	}

	sql := "UPDATE documents SET data = " + expr +
		" WHERE collection = " + c.arg(collection) + " AND id = " + c.arg(id)
	return statement{SQL: sql, Args: c.args}, true, nil
}

// fragment wraps acc with the primitive for u. Placeholders inside acc were
// recorded earlier, so every new placeholder appears after them in the SQL.
func (c *compiler) fragment(acc string, u update.FieldUpdate) (string, bool, error) {
	const doc = "documents.data"
	path := jsonPath(u.Field)

	switch u.Op {
	case update.SET:
		val, err := normalize(u.Value)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("json_set(%s, %s, json(%s))", acc, path, c.arg(val.json)), true, nil

	case update.SET_ON_INSERT:
		// Updates never insert, so the assignment never takes effect.
		return acc, true, nil

	case update.UNSET:
		return fmt.Sprintf("json_remove(%s, %s)", acc, path), true, nil

	case update.INC, update.MUL:
		val, err := normalize(u.Value)
		if err != nil {
			return "", false, err
		}
		if val.kind != kindNumber {
			return "", false, fmt.Errorf("%s %s: value %v is not a number", u.Op, u.Field, u.Value)
		}
		op := "+"
		if u.Op == update.MUL {
			op = "*"
		}
		// Missing fields count as 0; any other non-number fails the statement.
		return fmt.Sprintf("json_set(%s, %s, CASE WHEN json_type(%s, %s) IS NULL OR json_type(%s, %s) IN ('integer', 'real') "+
			"THEN COALESCE(json_extract(%s, %s), 0) %s %s ELSE %s END)",
			acc, path, doc, path, doc, path,
			doc, path, op, c.arg(val.sql), typeError(u, doc, path)), true, nil

	case update.MIN, update.MAX:
		val, err := normalize(u.Value)
		if err != nil {
			return "", false, err
		}
		op := "<"
		if u.Op == update.MAX {
			op = ">"
		}
		// Missing fields take the value; fields of another type are kept.
		return fmt.Sprintf("json_set(%s, %s, json(CASE WHEN json_type(%s, %s) IS NULL "+
			"OR (json_type(%s, %s) IN (%s) AND %s %s json_extract(%s, %s)) THEN %s ELSE %s -> %s END))",
			acc, path, doc, path,
			doc, path, val.kind.jsonTypes(), c.arg(val.sql), op, doc, path, c.arg(val.json), doc, path), true, nil

	case update.PUSH:
		val, err := normalize(u.Value)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("json_set(%s, %s, json(CASE WHEN json_type(%s, %s) = 'array' "+
			"THEN json_insert(%s -> %s, '$[#]', json(%s)) "+
			"WHEN json_type(%s, %s) IS NULL THEN json_array(json(%s)) ELSE %s END))",
			acc, path, doc, path,
			doc, path, c.arg(val.json),
			doc, path, c.arg(val.json), typeError(u, doc, path)), true, nil

	case update.ADD_TO_SET:
		val, err := normalize(u.Value)
		if err != nil {
			return "", false, err
		}
		head := fmt.Sprintf("json_set(%s, %s, json(CASE WHEN json_type(%s, %s) = 'array' THEN CASE WHEN ",
			acc, path, doc, path)
		e := c.alias()
		present := c.anyElement(doc, path, e, c.elemEquals(e, val))
		tail := fmt.Sprintf(" THEN %s -> %s ELSE json_insert(%s -> %s, '$[#]', json(%s)) END "+
			"WHEN json_type(%s, %s) IS NULL THEN json_array(json(%s)) ELSE %s END))",
			doc, path, doc, path, c.arg(val.json),
			doc, path, c.arg(val.json), typeError(u, doc, path))
		return head + present + tail, true, nil

	case update.PULL:
		val, err := normalize(u.Value)
		if err != nil {
			return "", false, err
		}
		e := c.alias()
		kept := fmt.Sprintf("json('[' || COALESCE((SELECT group_concat(%s -> %s.fullkey, ',') "+
			"FROM json_each(%s, %s) AS %s WHERE NOT (%s)), '') || ']')",
			doc, e, doc, path, e, c.elemEquals(e, val))
		// A missing field stays missing.
		set := func(v string) string { return fmt.Sprintf("json_set(%s, %s, %s)", v, path, kept) }
		return c.when(acc, fmt.Sprintf("json_type(%s, %s) = 'array'", doc, path), set,
			fmt.Sprintf("json_type(%s, %s) IS NULL", doc, path), typeError(u, doc, path)), true, nil

	case update.RENAME:
		to, ok := update.RenameTarget(u)
		if !ok {
			c.log.Warn("skipping rename without target", "field", u.Field, "value", u.Value)
			return "", false, nil
		}
		// The target is replaced as a whole, nulls included.
		set := func(v string) string { return fmt.Sprintf("json_set(%s, %s, json(%s -> %s))", v, jsonPath(to), doc, path) }
		moved := c.when(acc, fmt.Sprintf("json_type(%s, %s) IS NOT NULL", doc, path), set, "", "")
		return fmt.Sprintf("json_remove(%s, %s)", moved, path), true, nil

	default:
		c.log.Warn("skipping unknown update operation", "op", u.Op, "field", u.Field)
		return "", false, nil
	}
}

// when yields then(acc) if cond holds. Otherwise it yields acc unchanged
// when keep is empty or holds, and fail when it does not. acc is bound once
// through a one-row json_each so its placeholders appear once.
func (c *compiler) when(acc, cond string, then func(v string) string, keep, fail string) string {
	x := c.alias()
	v := x + ".value"
	otherwise := v
	if keep != "" {
		otherwise = fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", keep, v, fail)
	}
	return fmt.Sprintf("(SELECT CASE WHEN %s THEN %s ELSE %s END FROM json_each(json_array(json(%s))) AS %s)",
		cond, then(v), otherwise, acc, x)
}

// typeError is an expression failing the whole statement because field
// holds a value of the wrong type for u.
func typeError(u update.FieldUpdate, doc, path string) string {
	return fmt.Sprintf("%s(%s, %s, json_type(%s, %s))",
		typeErrorFunc, quote(string(u.Op)), quote(u.Field), doc, path)
}
