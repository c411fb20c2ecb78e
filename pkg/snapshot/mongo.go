package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection holds snapshot documents.
const DefaultCollection = "snapshots"

const connectTimeout = 10 * time.Second

// MongoStore keeps one document per backbone key.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and uses the snapshots collection of db.
func NewMongoStore(ctx context.Context, uri, db string) (*MongoStore, error) {
	if uri == "" || db == "" {
		return nil, errors.New("mongo: uri and database are required")
	}
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoStore{client: client, coll: client.Database(db).Collection(DefaultCollection)}, nil
}

// NewMongoStoreFromCollection wraps an existing collection. Close is then
// a no-op.
func NewMongoStoreFromCollection(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// Load implements [Store].
func (s *MongoStore) Load(ctx context.Context, key string) (*Snapshot, bool, error) {
	var snap Snapshot
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&snap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	return &snap, true, nil
}

// Save implements [Store] with an upsert on the key.
func (s *MongoStore) Save(ctx context.Context, snap *Snapshot) error {
	update := bson.M{"$set": bson.M{
		"positions": snap.Positions,
		"saved_at":  snap.SavedAt,
	}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": snap.Key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Close disconnects the client created by NewMongoStore.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
