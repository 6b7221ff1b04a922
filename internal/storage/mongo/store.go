// Package mongo stores one budget document per user in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"babybudget/internal/core"
	"babybudget/internal/storage"
)

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

// Connect dials uri, verifies the connection and ensures the unique userId index.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(database).Collection(collection),
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("userId_unique"),
	})
	if err != nil {
		return fmt.Errorf("create userId index: %w", err)
	}
	return nil
}

func (s *Store) FindBudget(ctx context.Context, userID string) (*core.Budget, error) {
	var doc budgetDoc
	err := s.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", core.ErrBudgetNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("find budget %s: %w", userID, err)
	}
	rec, err := fromDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("decode budget %s: %w", userID, err)
	}
	return core.RestoreBudget(rec)
}

func (s *Store) SaveBudget(ctx context.Context, b *core.Budget) error {
	rec := storage.NextRecord(b, s.now())
	doc, err := toDoc(rec)
	if err != nil {
		return fmt.Errorf("encode budget %s: %w", b.UserID(), err)
	}

	if b.IsNew() {
		if _, err := s.collection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: budget for %s already exists", core.ErrConflict, b.UserID())
			}
			return fmt.Errorf("insert budget %s: %w", b.UserID(), err)
		}
	} else {
		res, err := s.collection.ReplaceOne(ctx, bson.M{"userId": b.UserID(), "version": b.Version()}, doc)
		if err != nil {
			return fmt.Errorf("replace budget %s: %w", b.UserID(), err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: budget %s changed since version %d", core.ErrConflict, b.UserID(), b.Version())
		}
	}

	b.MarkPersisted(rec.Version, rec.UpdatedAt)
	return nil
}

func (s *Store) DeleteBudget(ctx context.Context, userID string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"userId": userID})
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", userID, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", core.ErrBudgetNotFound, userID)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// drop removes the collection; used by integration tests.
func (s *Store) drop(ctx context.Context) error {
	return s.collection.Drop(ctx)
}
