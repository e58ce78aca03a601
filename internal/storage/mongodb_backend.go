package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoOpTimeout = 5 * time.Second

// MongoBackend stores documents in a single collection keyed by _id.
type MongoBackend struct {
	client     *mongo.Client
	collection *mongo.Collection
	uri        string
	dbName     string
}

type mongoDocument struct {
	ID        string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoBackend creates a MongoDB-backed store.
func NewMongoBackend(uri, dbName string) *MongoBackend {
	if dbName == "" {
		dbName = "antigravity"
	}
	return &MongoBackend{uri: uri, dbName: dbName}
}

func withMongoTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, mongoOpTimeout)
}

func (m *MongoBackend) Initialize(ctx context.Context) error {
	ctx, cancel := withMongoTimeout(ctx)
	defer cancel()

	opts := options.Client().ApplyURI(m.uri)
	opts.SetMaxPoolSize(10)
	opts.SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping MongoDB: %w", err)
	}

	m.client = client
	m.collection = client.Database(m.dbName).Collection("documents")
	return nil
}

func (m *MongoBackend) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := withMongoTimeout(ctx)
	defer cancel()

	var doc mongoDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &ErrNotFound{Key: key}
		}
		return nil, err
	}
	return doc.Data, nil
}

func (m *MongoBackend) Save(ctx context.Context, key string, data []byte) error {
	ctx, cancel := withMongoTimeout(ctx)
	defer cancel()

	_, err := m.collection.ReplaceOne(ctx,
		bson.M{"_id": key},
		mongoDocument{ID: key, Data: data, UpdatedAt: time.Now().UTC()},
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *MongoBackend) Delete(ctx context.Context, key string) error {
	ctx, cancel := withMongoTimeout(ctx)
	defer cancel()

	_, err := m.collection.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (m *MongoBackend) List(ctx context.Context) ([]string, error) {
	ctx, cancel := withMongoTimeout(ctx)
	defer cancel()

	cursor, err := m.collection.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		keys = append(keys, doc.ID)
	}
	return keys, cursor.Err()
}

func (m *MongoBackend) Health(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("mongodb backend not initialized")
	}
	ctx, cancel := withMongoTimeout(ctx)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *MongoBackend) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
