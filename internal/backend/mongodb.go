package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GabrielNunesIT/go-libs/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// DocumentCollection is the subset of *mongo.Collection the backend uses.
type DocumentCollection interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// CollectionFactory returns the collection named target.
type CollectionFactory func(target string) DocumentCollection

// MongoOption configures the MongoBackend.
type MongoOption func(*MongoBackend)

// WithCollectionFactory replaces the collection lookup, mainly for tests.
func WithCollectionFactory(f CollectionFactory) MongoOption {
	return func(b *MongoBackend) {
		b.collection = f
	}
}

// MongoBackend writes each batch with a single InsertMany call.
type MongoBackend struct {
	collection CollectionFactory
	logger     logger.ILogger
}

// NewMongoBackend creates a backend writing to database on client.
// client may be nil when WithCollectionFactory is given.
func NewMongoBackend(client *mongo.Client, database string, log logger.ILogger, opts ...MongoOption) *MongoBackend {
	b := &MongoBackend{
		logger: log.SubLogger("MongoBackend"),
	}
	if client != nil {
		db := client.Database(database)
		b.collection = func(target string) DocumentCollection {
			return db.Collection(target)
		}
	}

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *MongoBackend) Name() string {
	return "mongodb"
}

// Start is a no-op; the client is connected by its owner.
func (b *MongoBackend) Start(ctx context.Context) error {
	if b.collection == nil {
		return fmt.Errorf("mongodb backend has no client")
	}
	return nil
}

// Stop is a no-op; the client is disconnected by its owner.
func (b *MongoBackend) Stop(ctx context.Context) error {
	return nil
}

// InsertMany converts records to documents and inserts them in one call.
// It returns the generated ObjectIDs in hex form.
func (b *MongoBackend) InsertMany(ctx context.Context, target string, records []*model.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = toDocument(r)
	}

	res, err := b.collection(target).InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("inserting %d documents into %s: %w", len(docs), target, err)
	}

	ids := make([]string, 0, len(res.InsertedIDs))
	for _, id := range res.InsertedIDs {
		if oid, ok := id.(primitive.ObjectID); ok {
			ids = append(ids, oid.Hex())
			continue
		}
		ids = append(ids, fmt.Sprint(id))
	}

	b.logger.Debugf("inserted documents: collection=%s, count=%d", target, len(ids))
	return ids, nil
}

func toDocument(r *model.Record) bson.D {
	doc := make(bson.D, 0, r.Len())
	for _, f := range r.Fields() {
		doc = append(doc, bson.E{Key: f.Name, Value: documentValue(f.Value)})
	}
	return doc
}

// documentValue keeps strings, numbers and booleans; anything else becomes its string form.
func documentValue(v any) any {
	switch val := v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint8, uint16, uint32,
		float32, float64:
		return val
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return stringForm(val)
	}
}
