// Package database owns the MongoDB connection and its readiness gate.
//
// The connection is opened in the background. Callers that need the database
// ask the Connector for it and get ErrNotReady until the connect has succeeded,
// so the HTTP listener never waits on a slow or broken database.
package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lifei6671/userauth/internal/config"
)

// ErrNotReady is returned while the connection is pending or after it failed.
var ErrNotReady = errors.New("database not ready")

// State is the readiness of the connection.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateFailed
)

// States lists every State in declaration order.
var States = []State{StateConnecting, StateReady, StateFailed}

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Hook runs once against the database before the connection is reported ready.
type Hook func(ctx context.Context, db *mongo.Database) error

type Connector struct {
	cfg  config.Database
	dial func(ctx context.Context) (*mongo.Client, error)

	started atomic.Bool
	done    chan struct{}

	mu        sync.RWMutex
	state     State
	client    *mongo.Client
	db        *mongo.Database
	err       error
	hooks     []Hook
	observers []func(State)
}

func NewConnector(cfg config.Database) *Connector {
	c := &Connector{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	c.dial = func(ctx context.Context) (*mongo.Client, error) {
		return mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	}
	return c
}

// OnReady registers a hook. Hooks must be registered before Connect; a failing
// hook is logged and does not fail the connection.
func (c *Connector) OnReady(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// OnStateChange registers fn to be called with every state the connector enters,
// starting with the current one.
func (c *Connector) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	current := c.state
	c.mu.Unlock()
	fn(current)
}

// Connect dials and pings the database within the configured timeout.
// It only runs once per Connector and does not retry.
func (c *Connector) Connect(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("database: connect already started")
	}

	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	client, err := c.dial(ctx)
	if err != nil {
		return c.fail(fmt.Errorf("connect: %w", err))
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return c.fail(fmt.Errorf("ping: %w", err))
	}

	db := client.Database(c.cfg.Name)

	c.mu.RLock()
	hooks := slices.Clone(c.hooks)
	c.mu.RUnlock()
	for _, h := range hooks {
		if err := h(ctx, db); err != nil {
			log.Warn().Err(err).Str("database", c.cfg.Name).Msg("database ready hook failed")
		}
	}

	c.mu.Lock()
	c.client = client
	c.db = db
	c.mu.Unlock()
	c.transition(StateReady)

	log.Info().Msg("DB connected SUCCESSFULLY !")
	return nil
}

func (c *Connector) fail(err error) error {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.transition(StateFailed)

	log.Error().Err(err).Str("database", c.cfg.Name).Msg("database connection failed")
	return err
}

func (c *Connector) transition(s State) {
	c.mu.Lock()
	c.state = s
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	if s != StateConnecting {
		close(c.done)
	}
	for _, fn := range observers {
		fn(s)
	}
}

func (c *Connector) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the connect error once the connector has failed.
func (c *Connector) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Wait blocks until the connection is ready or failed, or ctx is done.
func (c *Connector) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Database returns the handle once ready. Otherwise the error wraps ErrNotReady
// and, after a failure, the connect error.
func (c *Connector) Database() (*mongo.Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.state {
	case StateReady:
		return c.db, nil
	case StateFailed:
		return nil, fmt.Errorf("%w: %w", ErrNotReady, c.err)
	default:
		return nil, ErrNotReady
	}
}

// Disconnect closes the client if the connection was established.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}
