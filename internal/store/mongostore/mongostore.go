// Package mongostore writes records to a MongoDB collection.
package mongostore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tweetharvest/internal/model"
	"tweetharvest/internal/store"
)

const backend = "mongo"

// Options selects the server, database and collection.
type Options struct {
	// URI takes precedence over Host and Port when set.
	URI            string
	Host           string
	Port           int
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// DefaultOptions points at a local mongod and the dm_project.twitter collection.
func DefaultOptions() Options {
	return Options{
		Host:           "localhost",
		Port:           27017,
		Database:       "dm_project",
		Collection:     "twitter",
		ConnectTimeout: 10 * time.Second,
	}
}

// URIFor returns o.URI or builds one from Host and Port.
func (o Options) URIFor() string {
	if o.URI != "" {
		return o.URI
	}
	return "mongodb://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Store inserts one document per record. It never upserts.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Open connects and pings the server.
func Open(ctx context.Context, o Options) (*Store, error) {
	copts := options.Client().ApplyURI(o.URIFor())
	if o.ConnectTimeout > 0 {
		copts.SetConnectTimeout(o.ConnectTimeout).SetServerSelectionTimeout(o.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, copts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, coll: client.Database(o.Database).Collection(o.Collection)}, nil
}

// Insert writes rec as a new document.
func (s *Store) Insert(ctx context.Context, rec model.Record) error {
	_, err := s.coll.InsertOne(ctx, rec)
	return store.Wrap(backend, err)
}

// Count returns the number of documents for query, or all if query is empty.
func (s *Store) Count(ctx context.Context, query string) (int64, error) {
	filter := map[string]any{}
	if query != "" {
		filter["query"] = query
	}
	return s.coll.CountDocuments(ctx, filter)
}

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }
