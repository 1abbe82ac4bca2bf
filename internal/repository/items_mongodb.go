package repository

import (
	"context"
	"fmt"
	"time"

	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/model"
	"pantrypal-api/pkg/uid"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoItemRepository implements ItemRepository using MongoDB. Each item is
// one document; timestamps are stored as BSON dates so they sort natively.
type MongoItemRepository struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	log        logging.Logger
}

// NewMongoItemRepository connects and ensures the owner/createdAt index.
func NewMongoItemRepository(uri, database, collection string, log logging.Logger) (*MongoItemRepository, error) {
	log = logging.For(log, "repository")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	coll := db.Collection(collection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Warn("failed to create index", "collection", collection, "error", err)
	}

	log.Info("mongodb connected", "database", database, "collection", collection)
	return &MongoItemRepository{client: client, db: db, collection: coll, log: log}, nil
}

// QueryItems returns the user's documents ordered by createdAt. Missing
// createdAt values sort as null, which puts them last when descending.
func (r *MongoItemRepository) QueryItems(ctx context.Context, q model.ItemQuery) ([]model.Document, error) {
	if err := checkQuery(q); err != nil {
		return nil, err
	}

	dir := 1
	if q.Descending {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: dir}, {Key: "_id", Value: 1}})

	cur, err := r.collection.Find(ctx, bson.M{"userId": q.UserID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer cur.Close(ctx)

	var docs []model.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}
		docs = append(docs, fromBSON(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	return docs, nil
}

// CreateItem inserts a new document.
func (r *MongoItemRepository) CreateItem(ctx context.Context, userID string, fields model.Fields) (string, error) {
	doc := toBSON(ownedFields(userID, fields))
	id := uid.New()
	doc["_id"] = id

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to insert item: %w", err)
	}
	return id, nil
}

// UpdateItem applies fields with $set.
func (r *MongoItemRepository) UpdateItem(ctx context.Context, userID, id string, fields model.Fields) error {
	fields = withoutOwner(fields)
	if len(fields) == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id, "userId": userID})
		if err != nil {
			return fmt.Errorf("failed to update item: %w", err)
		}
		if n == 0 {
			return ErrItemNotFound
		}
		return nil
	}

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": toBSON(fields)})
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

// DeleteItem removes the user's document.
func (r *MongoItemRepository) DeleteItem(ctx context.Context, userID, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "userId": userID}); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// GetStats returns statistics about the item collection.
func (r *MongoItemRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["status"] = "connected"

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats["total_items"] = count

	owners, err := r.collection.Distinct(ctx, "userId", bson.M{})
	if err == nil {
		stats["users_with_items"] = len(owners)
	}

	result := r.db.RunCommand(ctx, bson.D{{Key: "collStats", Value: r.collection.Name()}})
	var collStats bson.M
	if err := result.Decode(&collStats); err != nil {
		r.log.Debug("collStats unavailable", "collection", r.collection.Name(), "error", err)
	} else {
		switch size := collStats["size"].(type) {
		case int64:
			stats["db_size_bytes"] = size
		case int32:
			stats["db_size_bytes"] = int64(size)
		}
	}
	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoItemRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// toBSON converts document fields for storage. Timestamps become BSON dates.
func toBSON(fields model.Fields) bson.M {
	out := make(bson.M, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case model.Timestamp:
			out[k] = primitive.NewDateTimeFromTime(t.ToDate())
		case time.Time:
			out[k] = primitive.NewDateTimeFromTime(t)
		default:
			out[k] = v
		}
	}
	return out
}

// fromBSON converts a stored document back to fields. BSON dates become
// Timestamps and the _id moves to Document.ID.
func fromBSON(raw bson.M) model.Document {
	var id string
	switch v := raw["_id"].(type) {
	case string:
		id = v
	case primitive.ObjectID:
		id = v.Hex()
	default:
		id = fmt.Sprint(v)
	}

	fields := make(model.Fields, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		if dt, ok := v.(primitive.DateTime); ok {
			fields[k] = model.TimestampFromTime(dt.Time())
			continue
		}
		fields[k] = v
	}
	return model.Document{ID: id, Data: fields}
}

// Ensure MongoItemRepository implements ItemRepository
var _ ItemRepository = (*MongoItemRepository)(nil)
