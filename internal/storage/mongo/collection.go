package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ejjahanieklu/ehn/internal/docstore"
)

type database struct {
	db *mongodriver.Database
}

func (d database) Collection(name string) docstore.Collection {
	return &collection{coll: d.db.Collection(name)}
}

type collection struct {
	coll *mongodriver.Collection
}

func (c *collection) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	stored := bson.M(docstore.Clone(doc))
	if stored == nil {
		stored = bson.M{}
	}
	if id, _ := stored[docstore.IDField].(string); id == "" {
		stored[docstore.IDField] = docstore.NewID()
	}

	res, err := c.coll.InsertOne(ctx, stored)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return idString(res.InsertedID), nil
}

func (c *collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	var raw bson.M
	err := c.coll.FindOne(ctx, toBSON(filter)).Decode(&raw)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, docstore.ErrNoDocuments
	}
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", c.coll.Name(), err)
	}
	return normalizeDocument(raw), nil
}

func (c *collection) Find(ctx context.Context, filter docstore.Filter) ([]docstore.Document, error) {
	cursor, err := c.coll.Find(ctx, toBSON(filter))
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.coll.Name(), err)
	}

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read %s cursor: %w", c.coll.Name(), err)
	}

	result := make([]docstore.Document, 0, len(raw))
	for _, doc := range raw {
		result = append(result, normalizeDocument(doc))
	}
	return result, nil
}

func (c *collection) UpsertByID(ctx context.Context, id string, doc docstore.Document) (docstore.UpsertResult, error) {
	if id == "" {
		return docstore.UpsertResult{}, errors.New("mongo: upsert requires an id")
	}

	replacement := bson.M(docstore.Clone(doc))
	if replacement == nil {
		replacement = bson.M{}
	}
	replacement[docstore.IDField] = id

	res, err := c.coll.ReplaceOne(ctx, bson.M{docstore.IDField: id}, replacement, options.Replace().SetUpsert(true))
	if err != nil {
		return docstore.UpsertResult{}, fmt.Errorf("upsert into %s: %w", c.coll.Name(), err)
	}
	return docstore.UpsertResult{ID: id, Inserted: res.UpsertedID != nil}, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter docstore.Filter) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, toBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("delete one from %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (c *collection) DeleteMany(ctx context.Context, filter docstore.Filter) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, toBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (c *collection) EnsureIndex(ctx context.Context, field string) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create index on %s.%s: %w", c.coll.Name(), field, err)
	}
	return nil
}

func toBSON(filter docstore.Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

func idString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	default:
		return fmt.Sprint(v)
	}
}

// normalizeDocument приводит декодированный BSON к обычным map и срезам,
// чтобы документы не зависели от типов драйвера.
func normalizeDocument(raw bson.M) docstore.Document {
	doc := make(docstore.Document, len(raw))
	for k, v := range raw {
		doc[k] = normalizeValue(v)
	}
	if id, ok := raw[docstore.IDField].(primitive.ObjectID); ok {
		doc[docstore.IDField] = id.Hex()
	}
	return doc
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case primitive.M:
		return map[string]any(normalizeDocument(bson.M(val)))
	case map[string]any:
		return map[string]any(normalizeDocument(bson.M(val)))
	case primitive.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	case int32:
		return int64(val)
	default:
		return val
	}
}

var _ docstore.Collection = (*collection)(nil)
