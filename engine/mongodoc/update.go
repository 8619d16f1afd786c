package mongodoc

import (
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/dbstore/query"
	"github.com/roach88/dbstore/update"
)

var updateOps = map[update.Operation]string{
	update.SET:           "$set",
	update.INC:           "$inc",
	update.UNSET:         "$unset",
	update.PUSH:          "$push",
	update.PULL:          "$pull",
	update.ADD_TO_SET:    "$addToSet",
	update.MUL:           "$mul",
	update.MIN:           "$min",
	update.MAX:           "$max",
	update.RENAME:        "$rename",
	update.SET_ON_INSERT: "$setOnInsert",
}

// translateUpdate groups ups by operator into one update document.
// Operators appear in the order of their first use. Unknown operations
// and updates without a field are skipped with a warning; applied is false
// when nothing remained.
func translateUpdate(ups []update.FieldUpdate, log *slog.Logger) (doc bson.D, applied bool, err error) {
	groups := map[string]int{}

	for _, u := range ups {
		op, ok := updateOps[u.Op]
		if !ok {
			log.Warn("skipping unknown update operation", "op", u.Op, "field", u.Field)
			continue
		}
		if u.Field == "" {
			log.Warn("skipping update without field", "op", u.Op)
			continue
		}

		var v any
		switch u.Op {
		case update.UNSET:
			v = ""
		case update.RENAME:
			to, ok := update.RenameTarget(u)
			if !ok {
				log.Warn("skipping rename without target", "field", u.Field, "value", u.Value)
				continue
			}
			v = to
		default:
			if v, err = bsonValue(u.Value); err != nil {
				return nil, false, err
			}
			if (u.Op == update.INC || u.Op == update.MUL) && !isNumber(v) {
				return nil, false, fmt.Errorf("%w: %s on %q requires a number, got %v", query.ErrInvalid, u.Op, u.Field, u.Value)
			}
		}

		i, ok := groups[op]
		if !ok {
			i = len(doc)
			groups[op] = i
			doc = append(doc, bson.E{Key: op, Value: bson.D{}})
		}
		doc[i].Value = append(doc[i].Value.(bson.D), bson.E{Key: u.Field, Value: v})
	}
	return doc, len(doc) > 0, nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int32, int64, float64:
		return true
	}
	return false
}
