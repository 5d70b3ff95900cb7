package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	mongoIDField                  = "_id"
	defaultServerSelectionTimeout = 5 * time.Second
)

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI                    string
	Database               string
	MaxPoolSize            uint64
	ServerSelectionTimeout time.Duration
	// Transactions commits batches inside a multi-document transaction.
	// Requires a replica set; without it batches fall back to ordered bulk
	// writes per collection.
	Transactions bool
	MaxBatchOps  int
}

// MongoStore stores documents in MongoDB collections, using the document ID
// as _id
type MongoStore struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
	maxBatchOps  int
	logger       *zap.Logger
}

// NewMongoStore connects and pings MongoDB
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri cannot be empty")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database name cannot be empty")
	}

	timeout := cfg.ServerSelectionTimeout
	if timeout <= 0 {
		timeout = defaultServerSelectionTimeout
	}
	clientOptions := options.Client().ApplyURI(cfg.URI).SetServerSelectionTimeout(timeout)
	if cfg.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		if disconnectErr := client.Disconnect(ctx); disconnectErr != nil {
			logger.Warn("failed to disconnect after ping failure", zap.Error(disconnectErr))
		}
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return NewMongoStoreWithClient(client, cfg, logger), nil
}

// NewMongoStoreWithClient wraps an existing client
func NewMongoStoreWithClient(client *mongo.Client, cfg MongoConfig, logger *zap.Logger) *MongoStore {
	maxOps := cfg.MaxBatchOps
	if maxOps <= 0 {
		maxOps = DefaultMaxBatchOps
	}
	return &MongoStore{
		client:       client,
		db:           client.Database(cfg.Database),
		transactions: cfg.Transactions,
		maxBatchOps:  maxOps,
		logger:       logger.Named("mongo"),
	}
}

// EnsureIndex creates an ascending index on a queried field
func (s *MongoStore) EnsureIndex(ctx context.Context, collection, field string) error {
	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create index %s.%s: %w", collection, field, err)
	}
	return nil
}

// Create implements Store
func (s *MongoStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	if collection == "" {
		return "", ErrEmptyCollection
	}
	id := NewID()
	if _, err := s.db.Collection(collection).InsertOne(ctx, withMongoID(id, doc)); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return id, nil
}

// Get implements Store
func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{mongoIDField: id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}
	snap := snapshotFromMongo(raw)
	return &snap, nil
}

// Update implements Store
func (s *MongoStore) Update(ctx context.Context, collection, id string, fields Document) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{mongoIDField: id},
		bson.M{"$set": bson.M(fields)},
	)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindWhere implements Store
func (s *MongoStore) FindWhere(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{field: value},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode %s results: %w", collection, err)
	}
	out := make([]Snapshot, 0, len(raws))
	for _, raw := range raws {
		out = append(out, snapshotFromMongo(raw))
	}
	return out, nil
}

// NewBatch implements Store
func (s *MongoStore) NewBatch() Batch {
	return &mongoBatch{store: s, buf: newBatchBuffer(s.maxBatchOps)}
}

// MaxBatchOps implements Store
func (s *MongoStore) MaxBatchOps() int {
	return s.maxBatchOps
}

// Ping checks the primary is reachable
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close implements Store
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongo: %w", err)
	}
	return nil
}

type mongoBatch struct {
	store *MongoStore
	buf   batchBuffer
}

func (b *mongoBatch) Set(collection string, doc Document) (string, error) {
	return b.buf.add(collection, doc)
}

func (b *mongoBatch) Len() int {
	return b.buf.Len()
}

func (b *mongoBatch) Commit(ctx context.Context) error {
	if b.buf.committed {
		return ErrBatchCommitted
	}
	if len(b.buf.writes) == 0 {
		b.buf.committed = true
		return nil
	}

	var err error
	if b.store.transactions {
		err = b.commitInTransaction(ctx)
	} else {
		err = b.writeAll(ctx)
	}
	if err != nil {
		return err
	}
	b.buf.committed = true
	return nil
}

func (b *mongoBatch) commitInTransaction(ctx context.Context) error {
	session, err := b.store.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, b.writeAll(sc)
	})
	if err != nil {
		return fmt.Errorf("mongo batch transaction failed: %w", err)
	}
	return nil
}

// writeAll issues one ordered bulk write per collection, in first-seen order
func (b *mongoBatch) writeAll(ctx context.Context) error {
	grouped := make(map[string][]mongo.WriteModel)
	order := make([]string, 0)
	for _, w := range b.buf.writes {
		if _, seen := grouped[w.collection]; !seen {
			order = append(order, w.collection)
		}
		grouped[w.collection] = append(grouped[w.collection],
			mongo.NewInsertOneModel().SetDocument(withMongoID(w.id, w.doc)))
	}

	for _, collection := range order {
		models := grouped[collection]
		if _, err := b.store.db.Collection(collection).BulkWrite(ctx, models,
			options.BulkWrite().SetOrdered(true)); err != nil {
			return fmt.Errorf("failed to bulk write %d documents to %s: %w", len(models), collection, err)
		}
		b.store.logger.Debug("bulk write committed",
			zap.String("collection", collection),
			zap.Int("operations", len(models)))
	}
	return nil
}

func withMongoID(id string, doc Document) bson.M {
	out := make(bson.M, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[mongoIDField] = id
	return out
}

func snapshotFromMongo(raw bson.M) Snapshot {
	id, _ := raw[mongoIDField].(string)
	data := make(Document, len(raw))
	for k, v := range raw {
		if k == mongoIDField {
			continue
		}
		data[k] = normalizeBSON(v)
	}
	return Snapshot{ID: id, Data: data}
}

// normalizeBSON converts driver-specific decoded types into plain Go values
// so repositories see the same shapes from every backend
func normalizeBSON(v any) any {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeBSON(item)
		}
		return out
	case primitive.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeBSON(item)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case int32:
		return int64(val)
	default:
		return v
	}
}
