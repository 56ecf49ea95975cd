// Package mongo implements the document store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// Options configures the client connection.
type Options struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

// Store is a storage.Backend over one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

var _ storage.Backend = (*Store)(nil)

// Open connects to the server and verifies it answers.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("empty mongodb uri")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("empty mongodb database name")
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &Store{client: client, db: client.Database(opts.Database), logger: logger}, nil
}

// Close disconnects the client and drains its pool.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Collection returns the named MongoDB collection.
func (s *Store) Collection(name string) storage.Collection {
	return &collection{coll: s.db.Collection(name)}
}

// Migrate creates the declared indexes. Collections themselves are created
// implicitly by the first write.
func (s *Store) Migrate(ctx context.Context, specs []storage.CollectionSpec) error {
	for _, spec := range specs {
		if len(spec.Indexes) == 0 {
			continue
		}
		models := make([]mongo.IndexModel, 0, len(spec.Indexes))
		for _, idx := range spec.Indexes {
			models = append(models, indexModel(idx))
		}
		if _, err := s.db.Collection(spec.Name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", spec.Name, err)
		}
	}
	s.logger.Debug("mongodb indexes ensured", slog.Int("collections", len(specs)))
	return nil
}

// indexModel converts idx to a driver index. Sparse becomes a partial
// filter, since sparse indexes still cover explicit nulls.
func indexModel(idx storage.Index) mongo.IndexModel {
	keys := bson.D{}
	for _, f := range idx.Fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	opts := options.Index()
	if idx.Unique {
		opts.SetUnique(true)
	}
	if idx.Sparse != "" {
		opts.SetName(strings.Join(idx.Fields, "_") + "_partial")
		opts.SetPartialFilterExpression(bson.D{{Key: idx.Sparse, Value: bson.D{{Key: "$type", Value: "string"}}}})
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

type collection struct {
	coll *mongo.Collection
}

func (c *collection) Insert(ctx context.Context, _ primitive.ObjectID, doc any) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert %s: %w", c.coll.Name(), storage.ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *collection) Get(ctx context.Context, id primitive.ObjectID, out any) error {
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *collection) FindOne(ctx context.Context, q storage.Query, out any) error {
	if err := q.Validate(); err != nil {
		return err
	}
	opts := options.FindOne().SetSort(sortDoc(q))
	err := c.coll.FindOne(ctx, filterDoc(q), opts).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *collection) Find(ctx context.Context, q storage.Query, out any) error {
	if err := q.Validate(); err != nil {
		return err
	}
	opts := options.Find().SetSort(sortDoc(q))
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cur, err := c.coll.Find(ctx, filterDoc(q), opts)
	if err != nil {
		return fmt.Errorf("list %s: %w", c.coll.Name(), err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s documents: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *collection) Count(ctx context.Context, q storage.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	n, err := c.coll.CountDocuments(ctx, filterDoc(q))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.coll.Name(), err)
	}
	return n, nil
}

func (c *collection) Replace(ctx context.Context, id primitive.ObjectID, doc any) error {
	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("update %s: %w", c.coll.Name(), storage.ErrDuplicate)
		}
		return fmt.Errorf("update %s: %w", c.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (c *collection) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s: %w", c.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (c *collection) DeleteMany(ctx context.Context, q storage.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	res, err := c.coll.DeleteMany(ctx, filterDoc(q))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (c *collection) Pull(ctx context.Context, q storage.Query, field string, value any) (int64, error) {
	if err := storage.ValidateField(field); err != nil {
		return 0, err
	}
	q = q.And(storage.AnyIn(field, value))
	if err := q.Validate(); err != nil {
		return 0, err
	}
	res, err := c.coll.UpdateMany(ctx, filterDoc(q), bson.M{"$pull": bson.M{field: value}})
	if err != nil {
		return 0, fmt.Errorf("pull %s.%s: %w", c.coll.Name(), field, err)
	}
	return res.ModifiedCount, nil
}

func (c *collection) Set(ctx context.Context, q storage.Query, field string, value any) (int64, error) {
	if err := storage.ValidateField(field); err != nil {
		return 0, err
	}
	if err := q.Validate(); err != nil {
		return 0, err
	}
	res, err := c.coll.UpdateMany(ctx, filterDoc(q), bson.M{"$set": bson.M{field: value}})
	if err != nil {
		return 0, fmt.Errorf("set %s.%s: %w", c.coll.Name(), field, err)
	}
	return res.MatchedCount, nil
}

// filterDoc translates the query conditions into a MongoDB filter.
func filterDoc(q storage.Query) bson.M {
	if len(q.Conds) == 0 {
		return bson.M{}
	}
	and := make(bson.A, 0, len(q.Conds))
	for _, c := range q.Conds {
		and = append(and, condDoc(c))
	}
	return bson.M{"$and": and}
}

func condDoc(c storage.Cond) bson.M {
	values := bson.A(c.Values)
	if values == nil {
		values = bson.A{}
	}
	switch c.Op {
	case storage.OpIn, storage.OpAnyIn:
		return bson.M{c.Field: bson.M{"$in": values}}
	case storage.OpNotIn:
		return bson.M{c.Field: bson.M{"$nin": values}}
	case storage.OpIsNull:
		return bson.M{c.Field: nil}
	case storage.OpNotNull:
		return bson.M{c.Field: bson.M{"$ne": nil}}
	case storage.OpSearch:
		if len(c.Fields) == 0 || c.Text == "" {
			return bson.M{}
		}
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(c.Text), Options: "i"}
		or := make(bson.A, 0, len(c.Fields))
		for _, f := range c.Fields {
			or = append(or, bson.M{f: pattern})
		}
		return bson.M{"$or": or}
	default:
		return bson.M{"_id": bson.M{"$exists": false}}
	}
}

// sortDoc mirrors the SQLite backend: requested keys, then _id.
func sortDoc(q storage.Query) bson.D {
	out := make(bson.D, 0, len(q.Sort)+1)
	hasID := false
	for _, s := range q.Sort {
		if s.Field == "_id" {
			hasID = true
		}
		dir := 1
		if s.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: s.Field, Value: dir})
	}
	if hasID {
		return out
	}
	return append(out, bson.E{Key: "_id", Value: 1})
}
