package store_test

import (
	"fmt"

	"github.com/roach88/dbstore/engine"
	"github.com/roach88/dbstore/store"
)

type User struct {
	store.Base
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	Age   int      `json:"age"`
	Tags  []string `json:"tags,omitempty"`
}

type Setting struct {
	store.Base
	Value string `json:"value"`
}

// Account has its own collection name and a unique email.
type Account struct {
	store.Base
	Email string `json:"email"`
}

func (*Account) CollectionName() string { return "accounts" }

func (*Account) Indexes() []engine.Index {
	return []engine.Index{{Fields: []string{"email"}, Unique: true}}
}

// Ticket derives its id from its number.
type Ticket struct {
	store.Base
	Number int `json:"number"`
}

func (t *Ticket) CreateID() string {
	if t.Number == 0 {
		return ""
	}
	return fmt.Sprintf("T-%04d", t.Number)
}

// noTxEngine hides the transaction capability of an engine.
type noTxEngine struct {
	engine.Engine
}

func (noTxEngine) SupportsTransactions() bool { return false }
