// Package query provides the backend-neutral filter, sort and pagination
// model used by the entity store.
//
// A filter is a tree of Nodes. Leaves are Criterion values (field,
// comparator, value); branches are Group values combining children with
// AND or OR:
//
//	q := query.New(query.And(
//	    query.Eq("status", "active"),
//	    query.Or(
//	        query.Gt("score", 10),
//	        query.Contains("name", "smith"),
//	    ),
//	)).Desc("score").Page(0, 20)
//
// SEALED INTERFACES:
//
// Node is a sealed interface using the marker method pattern. Only
// *Criterion and *Group implement it, which lets engine translators switch
// over the tree exhaustively and return ErrUnsupported from the default
// branch.
//
// CLOSED OPERATOR SET:
//
// The comparator set is fixed (see Comparators). Translators are expected to
// handle every member; each engine package carries a test that iterates
// Comparators so that a new comparator cannot ship untranslated.
//
// LEGACY SEMANTICS:
//
// Several comparators keep the behavior of the document store this model
// was first written against:
//   - NIN with an empty or nil collection means "field does not exist"
//   - EXISTS ignores its value and always asserts existence
//   - CONTAINS is a case-insensitive regular expression; a pattern that
//     fails to compile is retried once with all non-word, non-space
//     characters removed (see ContainsPattern)
//   - a Criterion without a field, an empty Group and a nil filter all
//     match every document
package query
