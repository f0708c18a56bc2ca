package database

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/lifei6671/userauth/internal/config"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestConnectorStartsConnecting(t *testing.T) {
	c := NewConnector(config.Database{Name: "userauth"})

	assert.Equal(t, StateConnecting, c.State())
	db, err := c.Database()
	assert.Nil(t, db)
	assert.ErrorIs(t, err, ErrNotReady)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
}

func TestConnectEmptyURIFails(t *testing.T) {
	buf := captureLog(t)
	c := NewConnector(config.Database{URI: "", Name: "userauth", ConnectTimeout: time.Second})

	rec := &stateRecorder{}
	c.OnStateChange(rec.record)

	err := c.Connect(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, []State{StateConnecting, StateFailed}, rec.get())
	assert.ErrorIs(t, c.Wait(context.Background()), err)

	_, dbErr := c.Database()
	assert.ErrorIs(t, dbErr, ErrNotReady)
	assert.ErrorIs(t, dbErr, err)

	assert.NoError(t, c.Disconnect(context.Background()))
	assert.NotContains(t, buf.String(), "DB connected SUCCESSFULLY !")
	assert.Contains(t, buf.String(), "database connection failed")
}

func TestConnectOnlyOnce(t *testing.T) {
	captureLog(t)
	c := NewConnector(config.Database{URI: "not-a-uri", Name: "userauth"})

	require.Error(t, c.Connect(context.Background()))
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestConnectReady(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ping ok", func(mt *mtest.T) {
		buf := captureLog(mt.T)
		c := NewConnector(config.Database{Name: "userauth", ConnectTimeout: time.Second})
		c.dial = func(context.Context) (*mongo.Client, error) { return mt.Client, nil }

		var hooked string
		c.OnReady(func(_ context.Context, db *mongo.Database) error {
			hooked = db.Name()
			return nil
		})
		rec := &stateRecorder{}
		c.OnStateChange(rec.record)

		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, c.Connect(context.Background()))

		assert.Equal(mt, StateReady, c.State())
		assert.Equal(mt, "userauth", hooked)
		assert.Equal(mt, []State{StateConnecting, StateReady}, rec.get())
		require.NoError(mt, c.Wait(context.Background()))

		db, err := c.Database()
		require.NoError(mt, err)
		assert.Equal(mt, "userauth", db.Name())

		assert.Equal(mt, 1, strings.Count(buf.String(), "DB connected SUCCESSFULLY !"))
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(7)", State(7).String())
}
