// Package mongo stores every collection as a MongoDB collection. The identity
// field of a model is kept in the document's _id.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/logger"
	"github.com/relabs-tech/kadmin/core/schema"
	"github.com/relabs-tech/kadmin/core/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is a MongoDB store.Store
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

// Open connects to uri and uses database
func Open(ctx context.Context, uri, database string) (*Store, error) {
	logger.Default().Infoln("connecting to mongo database:", database)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot reach mongo: %w", err)
	}
	return &Store{client: client, database: client.Database(database)}, nil
}

// Collection returns the collection of model
func (s *Store) Collection(ctx context.Context, model *schema.Model) (store.Collection, error) {
	idField := model.IDField().Name
	if idField == "" {
		return nil, fmt.Errorf("model %s has no id field", model.Name)
	}
	return &Collection{collection: s.database.Collection(model.Collection()), idField: idField}, nil
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Collection is a MongoDB store.Collection
type Collection struct {
	collection *mongo.Collection
	idField    string
}

func (c *Collection) toRecord(doc bson.M) core.Record {
	record := core.Record{}
	for k, v := range doc {
		if k == "_id" {
			record[c.idField] = v
			continue
		}
		record[k] = normalize(v)
	}
	return record
}

// normalize converts nested bson values to plain maps and slices
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		m := map[string]interface{}{}
		for k, e := range t {
			m[k] = normalize(e)
		}
		return m
	case bson.D:
		m := map[string]interface{}{}
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		l := make([]interface{}, len(t))
		for i, e := range t {
			l[i] = normalize(e)
		}
		return l
	default:
		return v
	}
}

func (c *Collection) toDocument(data core.Record) bson.M {
	doc := bson.M{}
	for k, v := range data {
		if k == c.idField {
			continue
		}
		doc[k] = v
	}
	return doc
}

func (c *Collection) decodeOne(res *mongo.SingleResult) (core.Record, error) {
	var doc bson.M
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return c.toRecord(doc), nil
}

// FindMany implements store.Collection
func (c *Collection) FindMany(ctx context.Context, skip, take int) ([]core.Record, error) {
	opts := options.Find().SetSkip(int64(skip)).SetLimit(int64(take)).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := c.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	result := []core.Record{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, c.toRecord(doc))
	}
	return result, cur.Err()
}

// Count implements store.Collection
func (c *Collection) Count(ctx context.Context) (int, error) {
	n, err := c.collection.CountDocuments(ctx, bson.D{})
	return int(n), err
}

// FindUnique implements store.Collection
func (c *Collection) FindUnique(ctx context.Context, id string) (core.Record, error) {
	return c.decodeOne(c.collection.FindOne(ctx, bson.M{"_id": id}))
}

// FindFirst implements store.Collection
func (c *Collection) FindFirst(ctx context.Context, field string, value interface{}) (core.Record, error) {
	if field == c.idField {
		field = "_id"
	}
	return c.decodeOne(c.collection.FindOne(ctx, bson.M{field: value}))
}

// Create implements store.Collection
func (c *Collection) Create(ctx context.Context, data core.Record) (core.Record, error) {
	id, _ := data[c.idField].(string)
	if id == "" {
		id = uuid.NewString()
	}
	doc := c.toDocument(data)
	doc["_id"] = id
	if _, err := c.collection.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return c.toRecord(doc), nil
}

// Update implements store.Collection
func (c *Collection) Update(ctx context.Context, id string, data core.Record) (core.Record, error) {
	doc := c.toDocument(data)
	if len(doc) == 0 {
		return c.FindUnique(ctx, id)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return c.decodeOne(c.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": doc}, opts))
}

// Delete implements store.Collection
func (c *Collection) Delete(ctx context.Context, id string) error {
	res, err := c.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
