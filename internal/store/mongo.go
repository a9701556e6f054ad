package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore maps collections one-to-one onto MongoDB collections and uses
// change streams for subscriptions, so the server must run as a replica set.
type MongoStore struct {
	db     *mongo.Database
	logger *slog.Logger
	now    func() time.Time
}

func NewMongoStore(db *mongo.Database, logger *slog.Logger) *MongoStore {
	return &MongoStore{db: db, logger: logger, now: time.Now}
}

func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client.Database(database), nil
}

func (s *MongoStore) Create(ctx context.Context, collection string, fields any) (string, error) {
	data, err := marshalFields(fields)
	if err != nil {
		return "", err
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return "", fmt.Errorf("convert %s document: %w", collection, err)
	}
	id := uuid.NewString()
	doc = append(bson.D{{Key: "_id", Value: id}}, doc...)

	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert %s document: %w", collection, err)
	}
	return id, nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return fmt.Errorf("update %s document: %w", collection, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s document: %w", collection, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error) {
	stream, err := s.db.Collection(q.Collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", q.Collection, err)
	}

	ch := make(chan Snapshot, 1)
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		s.emit(ctx, q, ch)
		for stream.Next(ctx) {
			s.emit(ctx, q, ch)
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("change stream closed", "collection", q.Collection, "error", err)
		}
	}()
	return ch, nil
}

func (s *MongoStore) emit(ctx context.Context, q Query, ch chan Snapshot) {
	snap, err := s.list(ctx, q)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("read collection", "collection", q.Collection, "error", err)
		}
		return
	}
	offer(ch, snap)
}

func (s *MongoStore) list(ctx context.Context, q Query) (Snapshot, error) {
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	cursor, err := s.db.Collection(q.Collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return Snapshot{}, err
	}
	defer cursor.Close(ctx)

	docs := make([]Document, 0)
	for cursor.Next(ctx) {
		var raw bson.D
		if err := cursor.Decode(&raw); err != nil {
			return Snapshot{}, err
		}
		doc := Document{}
		fields := make(bson.D, 0, len(raw))
		for _, e := range raw {
			if e.Key == "_id" {
				doc.ID = fmt.Sprint(e.Value)
				continue
			}
			fields = append(fields, e)
		}
		data, err := bson.MarshalExtJSON(fields, false, false)
		if err != nil {
			return Snapshot{}, err
		}
		doc.Fields = data
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Collection: q.Collection, Documents: docs, ReadAt: s.now()}, nil
}
