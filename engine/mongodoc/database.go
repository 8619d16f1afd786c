package mongodoc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/roach88/dbstore/engine"
)

type database struct {
	name   string
	db     *mongo.Database
	client *mongo.Client
	opts   settings

	mu          sync.Mutex
	collections map[string]*collection // by name, and name + "\x00fast"
	indexes     map[string]bool
}

var _ engine.Database = (*database)(nil)

func (d *database) Name() string { return d.name }

// Native returns the *mongo.Database.
func (d *database) Native() any { return d.db }

// Collection resolves name and creates the indexes of spec not created
// before. Index builds run outside s: the server rejects them inside a
// transaction on existing collections. FastWrite collections write with an
// unacknowledged write concern outside transactions.
func (d *database) Collection(ctx context.Context, s engine.Session, name string, spec engine.CollectionSpec) (engine.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var models []mongo.IndexModel
	var keys []string
	for _, idx := range spec.Indexes {
		m, err := indexModel(idx)
		if err != nil {
			return nil, fmt.Errorf("index on %s: %w", name, err)
		}
		key := indexKey(name, idx)
		if !d.indexes[key] {
			models = append(models, m)
			keys = append(keys, key)
		}
	}
	if len(models) > 0 {
		// Index builds always need acknowledgement.
		if _, err := d.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return nil, fmt.Errorf("create indexes on %s: %w", name, err)
		}
		for _, k := range keys {
			d.indexes[k] = true
		}
	}

	handle := name
	if spec.FastWrite {
		handle += "\x00fast"
	}
	if c, ok := d.collections[handle]; ok {
		return c, nil
	}

	copts := options.Collection()
	if spec.FastWrite {
		copts.SetWriteConcern(writeconcern.Unacknowledged())
	}
	c := &collection{name: name, coll: d.db.Collection(name, copts), db: d}
	d.collections[handle] = c
	d.opts.log.Debug("resolved collection", "database", d.name, "collection", name,
		"indexes", len(spec.Indexes), "fast_write", spec.FastWrite)
	return c, nil
}

func indexKey(collection string, idx engine.Index) string {
	return fmt.Sprintf("%s\x00%s\x00%t", collection, strings.Join(idx.Fields, ","), idx.Unique)
}

func indexModel(idx engine.Index) (mongo.IndexModel, error) {
	if len(idx.Fields) == 0 {
		return mongo.IndexModel{}, fmt.Errorf("index has no fields")
	}
	keys := make(bson.D, 0, len(idx.Fields))
	for _, f := range idx.Fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(idx.Unique)}, nil
}

// Begin starts a driver session and a transaction on it.
func (d *database) Begin(ctx context.Context, opts engine.TxOptions) (engine.Session, error) {
	sess, err := d.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if err := sess.StartTransaction(options.Transaction()); err != nil {
		sess.EndSession(ctx)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &session{sess: sess, db: d, readOnly: opts.ReadOnly}, nil
}

// bind returns ctx carrying s's driver session, or ctx itself when s is
// nil.
func (d *database) bind(ctx context.Context, s engine.Session) (context.Context, error) {
	if s == nil {
		return ctx, nil
	}
	ss, ok := s.(*session)
	if !ok || ss.db.client != d.client {
		return nil, fmt.Errorf("session does not belong to database %q", d.name)
	}
	if ss.done {
		return nil, fmt.Errorf("session on database %q already finished", d.name)
	}
	return mongo.NewSessionContext(ctx, ss.sess), nil
}
