package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// MongoStore reads rules from a MongoDB collection in natural order.
type MongoStore struct {
	collection *mongo.Collection
}

// ruleDocument is the stored shape of a routing rule.
type ruleDocument struct {
	Pattern      string        `bson:"pattern"`
	Target       string        `bson:"target_table"`
	ParserConfig bson.RawValue `bson:"parser_config,omitempty"`
}

// NewMongoStore creates a store reading the given collection.
func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{collection: client.Database(database).Collection(collection)}
}

// Rules loads every document in the rule collection.
func (s *MongoStore) Rules(ctx context.Context) ([]model.RoutingRule, error) {
	cursor, err := s.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.collection.Name(), err)
	}
	defer cursor.Close(ctx)

	var rules []model.RoutingRule
	for cursor.Next(ctx) {
		var doc ruleDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decoding rule %d: %v", model.ErrConfig, len(rules), err)
		}
		rule, err := doc.toRule()
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", model.ErrConfig, len(rules), err)
		}
		rules = append(rules, rule)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", s.collection.Name(), err)
	}
	return rules, nil
}

func (d ruleDocument) toRule() (model.RoutingRule, error) {
	rule := model.RoutingRule{Pattern: d.Pattern, Target: d.Target}

	switch d.ParserConfig.Type {
	case 0, bsontype.Null, bsontype.Undefined:
	case bsontype.String:
		// JSON stored as text, validated when the rule is matched.
		rule.ParserConfig = json.RawMessage(d.ParserConfig.StringValue())
	case bsontype.EmbeddedDocument:
		raw, err := bson.MarshalExtJSON(d.ParserConfig.Document(), false, false)
		if err != nil {
			return rule, fmt.Errorf("encoding parser_config: %w", err)
		}
		rule.ParserConfig = raw
	default:
		return rule, fmt.Errorf("unsupported parser_config type %s", d.ParserConfig.Type)
	}
	return rule, nil
}
