// Package update models partial, field-level document updates.
//
// A list of FieldUpdates is applied by the engine as ONE atomic instruction:
// either every listed operation is persisted or none is. Engines translate
// each Operation to a native primitive and skip (with a warning) operations
// they do not recognize.
package update

import (
	"fmt"
	"sort"
)

// Operation is the kind of a FieldUpdate.
type Operation string

const (
	SET           Operation = "SET"           // assign
	INC           Operation = "INC"           // increment by number
	UNSET         Operation = "UNSET"         // remove field
	PUSH          Operation = "PUSH"          // append to array
	PULL          Operation = "PULL"          // remove matching elements
	ADD_TO_SET    Operation = "ADD_TO_SET"    // append if absent
	MUL           Operation = "MUL"           // multiply
	MIN           Operation = "MIN"           // keep the smaller value
	MAX           Operation = "MAX"           // keep the larger value
	RENAME        Operation = "RENAME"        // move to the field named by Value
	SET_ON_INSERT Operation = "SET_ON_INSERT" // assign only when inserting
)

// Operations returns every known operation in declaration order.
func Operations() []Operation {
	return []Operation{SET, INC, UNSET, PUSH, PULL, ADD_TO_SET, MUL, MIN, MAX, RENAME, SET_ON_INSERT}
}

// Known reports whether op is part of the operation set.
func (op Operation) Known() bool {
	for _, o := range Operations() {
		if o == op {
			return true
		}
	}
	return false
}

// FieldUpdate is one field-level operation. Field is a dotted path.
type FieldUpdate struct {
	Field string
	Op    Operation
	Value any
}

func (u FieldUpdate) String() string {
	return fmt.Sprintf("%s %s=%v", u.Op, u.Field, u.Value)
}

func Set(field string, value any) FieldUpdate { return FieldUpdate{Field: field, Op: SET, Value: value} }
func Inc(field string, by any) FieldUpdate    { return FieldUpdate{Field: field, Op: INC, Value: by} }
func Unset(field string) FieldUpdate          { return FieldUpdate{Field: field, Op: UNSET} }
func Push(field string, value any) FieldUpdate {
	return FieldUpdate{Field: field, Op: PUSH, Value: value}
}
func Pull(field string, value any) FieldUpdate {
	return FieldUpdate{Field: field, Op: PULL, Value: value}
}
func AddToSet(field string, value any) FieldUpdate {
	return FieldUpdate{Field: field, Op: ADD_TO_SET, Value: value}
}
func Mul(field string, by any) FieldUpdate     { return FieldUpdate{Field: field, Op: MUL, Value: by} }
func Min(field string, value any) FieldUpdate  { return FieldUpdate{Field: field, Op: MIN, Value: value} }
func Max(field string, value any) FieldUpdate  { return FieldUpdate{Field: field, Op: MAX, Value: value} }
func Rename(field, to string) FieldUpdate      { return FieldUpdate{Field: field, Op: RENAME, Value: to} }
func SetOnInsert(field string, value any) FieldUpdate {
	return FieldUpdate{Field: field, Op: SET_ON_INSERT, Value: value}
}

// FromMap converts a field map into SET updates ordered by field name.
func FromMap(fields map[string]any) []FieldUpdate {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]FieldUpdate, 0, len(keys))
	for _, k := range keys {
		out = append(out, Set(k, fields[k]))
	}
	return out
}

// RenameTarget returns the destination field of a RENAME update.
func RenameTarget(u FieldUpdate) (string, bool) {
	to, ok := u.Value.(string)
	return to, ok && to != "" && to != u.Field
}
