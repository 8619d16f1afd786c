package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NamingStrategy maps an entity type to its collection name.
type NamingStrategy interface {
	CollectionName(t Type) string
}

// NamingFunc adapts a function to NamingStrategy.
type NamingFunc func(t Type) string

func (f NamingFunc) CollectionName(t Type) string { return f(t) }

var (
	// QualifiedNaming names collections after the package-qualified type
	// name, e.g. "model.User". It is the default.
	QualifiedNaming NamingStrategy = NamingFunc(func(t Type) string { return t.String() })

	// SimpleNaming uses the bare type name, e.g. "User".
	SimpleNaming NamingStrategy = NamingFunc(func(t Type) string { return t.Name })

	// SnakeNaming lowercases the type name and separates words with
	// underscores, e.g. "UserAccount" becomes "user_account".
	SnakeNaming NamingStrategy = NamingFunc(func(t Type) string { return snake(t.Name) })
)

var lower = cases.Lower(language.Und)

// snake splits a camel-case identifier into words. An upper-case run is
// one word, except its last letter starts the next word when a lower-case
// letter follows ("HTTPServer" is "http_server").
func snake(name string) string {
	rs := []rune(name)
	var words []string
	start := 0
	for i := 1; i < len(rs); i++ {
		prev, cur := rs[i-1], rs[i]
		boundary := unicode.IsUpper(cur) &&
			(unicode.IsLower(prev) || unicode.IsDigit(prev) ||
				(unicode.IsUpper(prev) && i+1 < len(rs) && unicode.IsLower(rs[i+1])))
		if cur == '_' {
			words = append(words, string(rs[start:i]))
			start = i + 1
			continue
		}
		if boundary && start < i {
			words = append(words, string(rs[start:i]))
			start = i
		}
	}
	if start < len(rs) {
		words = append(words, string(rs[start:]))
	}

	parts := words[:0]
	for _, w := range words {
		if w != "" {
			parts = append(parts, w)
		}
	}
	return lower.String(strings.Join(parts, "_"))
}

// collectionName resolves the collection of an entity type, preferring
// the entity's own Named override.
func (s *Store) collectionName(t Type, proto Entity) string {
	if n, ok := proto.(Named); ok {
		if name := n.CollectionName(); name != "" {
			return name
		}
	}
	return s.naming.CollectionName(t)
}
