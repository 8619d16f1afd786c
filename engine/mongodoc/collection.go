package mongodoc

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roach88/dbstore/engine"
	"github.com/roach88/dbstore/query"
	"github.com/roach88/dbstore/update"
)

type collection struct {
	name string
	coll *mongo.Collection
	db   *database
}

var _ engine.Collection = (*collection)(nil)

func (c *collection) Name() string { return c.name }

func byID(id string) bson.D { return bson.D{{Key: engine.IDField, Value: id}} }

func (c *collection) Get(ctx context.Context, s engine.Session, id string) (engine.Document, error) {
	ctx, err := c.db.bind(ctx, s)
	if err != nil {
		return nil, err
	}

	var m bson.M
	err = c.coll.FindOne(ctx, byID(id)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	return fromBSON(m)
}

func (c *collection) Find(ctx context.Context, s engine.Session, q *query.Query) ([]engine.Document, error) {
	ctx, err := c.db.bind(ctx, s)
	if err != nil {
		return nil, err
	}

	var filterNode query.Node
	var orders []query.Order
	if q != nil {
		filterNode, orders = q.Filter, q.OrderBy
	}
	filter, err := translateFilter(filterNode, c.db.opts.log)
	if err != nil {
		return nil, fmt.Errorf("translate query on %s: %w", c.name, err)
	}

	fopts := options.Find()
	if sort := translateSort(orders); sort != nil {
		fopts.SetSort(sort)
	}
	skip, limit, hasLimit := q.Window()
	if skip > 0 {
		fopts.SetSkip(int64(skip))
	}
	if hasLimit {
		fopts.SetLimit(int64(limit))
	}

	cur, err := c.coll.Find(ctx, filter, fopts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}
	var ms []bson.M
	if err := cur.All(ctx, &ms); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}

	docs := make([]engine.Document, 0, len(ms))
	for _, m := range ms {
		doc, err := fromBSON(m)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *collection) Count(ctx context.Context, s engine.Session, filterNode query.Node) (int64, error) {
	ctx, err := c.db.bind(ctx, s)
	if err != nil {
		return 0, err
	}
	filter, err := translateFilter(filterNode, c.db.opts.log)
	if err != nil {
		return 0, fmt.Errorf("translate query on %s: %w", c.name, err)
	}
	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

// Insert and Replace report success for unacknowledged writes.
func (c *collection) Insert(ctx context.Context, s engine.Session, id string, doc engine.Document) error {
	ctx, err := c.writer(ctx, s)
	if err != nil {
		return err
	}
	d, err := toBSON(doc, id)
	if err != nil {
		return err
	}
	if _, err := c.coll.InsertOne(ctx, d); err != nil && !errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return fmt.Errorf("insert %s/%s: %w", c.name, id, err)
	}
	return nil
}

func (c *collection) Replace(ctx context.Context, s engine.Session, id string, doc engine.Document) error {
	ctx, err := c.writer(ctx, s)
	if err != nil {
		return err
	}
	d, err := toBSON(doc, id)
	if err != nil {
		return err
	}
	if _, err := c.coll.ReplaceOne(ctx, byID(id), d); err != nil && !errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return fmt.Errorf("replace %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Delete reports false for unacknowledged writes, whose outcome is unknown.
func (c *collection) Delete(ctx context.Context, s engine.Session, id string) (bool, error) {
	ctx, err := c.writer(ctx, s)
	if err != nil {
		return false, err
	}
	res, err := c.coll.DeleteOne(ctx, byID(id))
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	return res.DeletedCount > 0, nil
}

// Update sends ups as one UpdateOne.
func (c *collection) Update(ctx context.Context, s engine.Session, id string, ups []update.FieldUpdate) (bool, error) {
	ctx, err := c.writer(ctx, s)
	if err != nil {
		return false, err
	}
	doc, applied, err := translateUpdate(ups, c.db.opts.log)
	if err != nil {
		return false, fmt.Errorf("translate update on %s/%s: %w", c.name, id, err)
	}
	if !applied {
		return false, nil
	}
	if _, err := c.coll.UpdateOne(ctx, byID(id), doc); err != nil && !errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return false, fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}
	return true, nil
}

func (c *collection) writer(ctx context.Context, s engine.Session) (context.Context, error) {
	if s != nil && s.ReadOnly() {
		return nil, fmt.Errorf("write to %s in read-only session: %w", c.name, engine.ErrReadOnly)
	}
	return c.db.bind(ctx, s)
}
