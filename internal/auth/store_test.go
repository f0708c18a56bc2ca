package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/lifei6671/userauth/internal/database"
)

type staticDB struct {
	db  *mongo.Database
	err error
}

func (s staticDB) Database() (*mongo.Database, error) { return s.db, s.err }

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create user", func(mt *mtest.T) {
		store := NewMongoStore(staticDB{db: mt.DB})
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := &User{Name: "Ada", Email: "ada@example.com"}
		require.NoError(mt, store.CreateUser(ctx, u))
		assert.False(mt, u.ID.IsZero())
	})

	mt.Run("create user duplicate email", func(mt *mtest.T) {
		store := NewMongoStore(staticDB{db: mt.DB})
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: userauth.users index: email_unique",
		}))

		err := store.CreateUser(ctx, &User{Name: "Ada", Email: "ada@example.com"})
		assert.ErrorIs(mt, err, ErrEmailTaken)
	})

	mt.Run("user by email", func(mt *mtest.T) {
		store := NewMongoStore(staticDB{db: mt.DB})
		id := primitive.NewObjectID()
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Ada"},
			{Key: "email", Value: "ada@example.com"},
			{Key: "password", Value: primitive.Binary{Data: []byte("hash")}},
		}))

		u, err := store.UserByEmail(ctx, "ada@example.com")
		require.NoError(mt, err)
		assert.Equal(mt, id, u.ID)
		assert.Equal(mt, "Ada", u.Name)
		assert.Equal(mt, []byte("hash"), u.PasswordHash)
	})

	mt.Run("user by id not found", func(mt *mtest.T) {
		store := NewMongoStore(staticDB{db: mt.DB})
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := store.UserByID(ctx, primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrUserNotFound)
	})

	mt.Run("revoke twice", func(mt *mtest.T) {
		store := NewMongoStore(staticDB{db: mt.DB})
		expires := time.Now().Add(time.Hour)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
		)

		require.NoError(mt, store.Revoke(ctx, "jti-1", expires))
		assert.ErrorIs(mt, store.Revoke(ctx, "jti-1", expires), ErrTokenRevoked)
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())
		require.NoError(mt, EnsureIndexes(ctx, mt.DB))
	})

	mt.Run("ensure indexes failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    85,
			Name:    "IndexOptionsConflict",
			Message: "index already exists with different options",
		}))
		err := EnsureIndexes(ctx, mt.DB)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "users index")
	})
}

func TestMongoStoreNotReady(t *testing.T) {
	cause := errors.New("ping: server selection timeout")
	store := NewMongoStore(staticDB{err: errors.Join(database.ErrNotReady, cause)})
	ctx := context.Background()

	err := store.CreateUser(ctx, &User{Email: "ada@example.com"})
	assert.ErrorIs(t, err, database.ErrNotReady)

	_, err = store.UserByEmail(ctx, "ada@example.com")
	assert.ErrorIs(t, err, database.ErrNotReady)

	err = store.Revoke(ctx, "jti", time.Now())
	assert.ErrorIs(t, err, database.ErrNotReady)
}
