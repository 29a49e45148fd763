// mongodb/client.go
package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ClientConfig holds the connection settings passed through to the driver.
type ClientConfig struct {
	URI                    string
	Database               string
	Collection             string
	MaxPoolSize            uint64
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	RetryWrites            bool
	RetryReads             bool
}

// Client manages the connection to MongoDB and the active collection.
// The active collection can be switched at runtime.
type Client struct {
	cfg ClientConfig
	log zerolog.Logger

	mu         sync.RWMutex
	client     *mongo.Client
	db         *mongo.Database
	coll       *mongo.Collection
	collection string
}

// NewClient prepares an unconnected client.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 100
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ServerSelectionTimeout == 0 {
		cfg.ServerSelectionTimeout = 5 * time.Second
	}
	return &Client{
		cfg:        cfg,
		log:        log.With().Str("component", "mongodb").Logger(),
		collection: cfg.Collection,
	}
}

// Connect establishes the connection and pings the server.
func (c *Client) Connect(ctx context.Context) error {
	opts := options.Client().
		ApplyURI(c.cfg.URI).
		SetMaxPoolSize(c.cfg.MaxPoolSize).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetServerSelectionTimeout(c.cfg.ServerSelectionTimeout).
		SetRetryWrites(c.cfg.RetryWrites).
		SetRetryReads(c.cfg.RetryReads)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("mongodb: connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("mongodb: ping: %w", err)
	}

	c.mu.Lock()
	c.client = client
	c.db = client.Database(c.cfg.Database)
	c.coll = c.db.Collection(c.collection)
	c.mu.Unlock()

	c.log.Info().
		Str("database", c.cfg.Database).
		Str("collection", c.collection).
		Msg("connected to mongodb")
	return nil
}

// Disconnect closes the connection. Safe to call when never connected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.db = nil
	c.coll = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongodb: disconnect: %w", err)
	}
	c.log.Info().Msg("disconnected from mongodb")
	return nil
}

// Ping verifies connectivity against the primary.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}
	return client.Ping(ctx, readpref.Primary())
}

// Collection returns the active collection handle.
func (c *Client) Collection() (*mongo.Collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.coll == nil {
		return nil, ErrNotConnected
	}
	return c.coll, nil
}

// Database returns the database handle.
func (c *Client) Database() (*mongo.Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, ErrNotConnected
	}
	return c.db, nil
}

// CollectionName returns the name of the active collection.
func (c *Client) CollectionName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection
}

// Use switches the active collection.
func (c *Client) Use(collection string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return ErrNotConnected
	}
	c.collection = collection
	c.coll = c.db.Collection(collection)
	c.log.Info().Str("collection", collection).Msg("switched active collection")
	return nil
}

// ListCollections returns the collection names of the database.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	db, err := c.Database()
	if err != nil {
		return nil, err
	}
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongodb: list collections: %w", err)
	}
	return names, nil
}

// CreateCollection creates a new collection.
func (c *Client) CreateCollection(ctx context.Context, name string) error {
	db, err := c.Database()
	if err != nil {
		return err
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		return fmt.Errorf("mongodb: create collection %q: %w", name, err)
	}
	c.log.Info().Str("collection", name).Msg("collection created")
	return nil
}

// DropCollection removes a collection and all of its documents.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	db, err := c.Database()
	if err != nil {
		return err
	}
	if err := db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("mongodb: drop collection %q: %w", name, err)
	}
	c.log.Warn().Str("collection", name).Msg("collection dropped")
	return nil
}

// EnsureIndexes creates the baseline indexes: a compound descending index
// on the timestamp fields and a best-effort wildcard text index.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	coll, err := c.Collection()
	if err != nil {
		return err
	}

	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: FieldCreatedAt, Value: -1},
			{Key: FieldUpdatedAt, Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("mongodb: create timestamp index: %w", err)
	}

	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "$**", Value: "text"}},
	})
	if err != nil {
		// a conflicting text index may already exist
		c.log.Warn().Err(err).Msg("wildcard text index not created")
	}
	return nil
}

// Health pings the server and probes the active collection, classifying
// the result as healthy, degraded or unhealthy.
func (c *Client) Health(ctx context.Context) *Health {
	start := time.Now()
	h := &Health{Status: "unhealthy", LastCheck: start.UTC()}

	if err := c.Ping(ctx); err != nil {
		h.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000
		return h
	}
	h.DatabaseConnected = true

	if coll, err := c.Collection(); err == nil {
		res := coll.FindOne(ctx, bson.M{})
		if err := res.Err(); err == nil || err == mongo.ErrNoDocuments {
			h.CollectionAccessible = true
		}
	}

	h.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000
	switch {
	case h.CollectionAccessible && h.ResponseTimeMS < 1000:
		h.Status = "healthy"
	case h.CollectionAccessible:
		h.Status = "degraded"
	}
	return h
}
