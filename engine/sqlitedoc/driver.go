package sqlitedoc

import (
	"database/sql"
	"fmt"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// driverName is the database/sql driver registered with the custom
// functions and connection pragmas.
const driverName = "sqlite3_dbstore"

// typeErrorFunc names the function update statements call to abort on a
// field of the wrong type.
const typeErrorFunc = "dbstore_type_error"

// Connection-level pragmas, run on every new connection. journal_mode is
// persistent per file and is set once in openDatabase.
var pragmas = []string{
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
}

var registerOnce sync.Once

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				for _, p := range pragmas {
					if _, err := conn.Exec(p, nil); err != nil {
						return err
					}
				}
				// "X REGEXP Y" calls regexp(Y, X).
				if err := conn.RegisterFunc("regexp", matchRegexp, true); err != nil {
					return err
				}
				// Not pure, so SQLite never hoists it out of its CASE branch.
				return conn.RegisterFunc(typeErrorFunc, failTypeMismatch, false)
			},
		})
	})
}

var patterns sync.Map // string -> *regexp.Regexp

// matchRegexp backs the REGEXP operator. Non-text values never match.
// Patterns reaching SQL were already validated by the compiler, so a
// compile error here means a caller bypassed it and is returned as is.
func matchRegexp(pattern string, v any) (bool, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return false, nil
	}

	cached, ok := patterns.Load(pattern)
	if !ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, err
		}
		cached, _ = patterns.LoadOrStore(pattern, re)
	}
	return cached.(*regexp.Regexp).MatchString(s), nil
}

// failTypeMismatch always fails. Its message becomes the statement's error.
func failTypeMismatch(op, field, jsonType string) (string, error) {
	return "", fmt.Errorf("cannot apply %s to field %q of type %s", op, field, jsonType)
}
