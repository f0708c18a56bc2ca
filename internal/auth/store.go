package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection   = "users"
	revokedCollection = "revoked_tokens"
)

type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id primitive.ObjectID) (User, error)
	// Revoke returns ErrTokenRevoked if tokenID is already recorded.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

type DatabaseProvider interface {
	Database() (*mongo.Database, error)
}

type MongoStore struct {
	db DatabaseProvider
}

func NewMongoStore(db DatabaseProvider) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) collection(name string) (*mongo.Collection, error) {
	db, err := s.db.Database()
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *User) error {
	coll, err := s.collection(usersCollection)
	if err != nil {
		return err
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}

	if _, err := coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *MongoStore) UserByID(ctx context.Context, id primitive.ObjectID) (User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.D) (User, error) {
	coll, err := s.collection(usersCollection)
	if err != nil {
		return User{}, err
	}

	var u User
	if err := coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *MongoStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	coll, err := s.collection(revokedCollection)
	if err != nil {
		return err
	}

	_, err = coll.InsertOne(ctx, bson.D{
		{Key: "_id", Value: tokenID},
		{Key: "expires_at", Value: expiresAt},
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrTokenRevoked
		}
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// EnsureIndexes runs once the connection is ready.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = db.Collection(revokedCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
	})
	if err != nil {
		return fmt.Errorf("create revoked tokens index: %w", err)
	}
	return nil
}
