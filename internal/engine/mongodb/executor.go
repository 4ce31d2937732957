// Package mongodb implements the engine executor on the MongoDB driver.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/docagg/internal/aggregation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Executor runs aggregation pipelines against a MongoDB database.
type Executor struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// Connect opens a client for uri and verifies it can reach the primary.
// A positive timeout bounds every aggregation request.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Executor, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	slog.Info("[Mongo] Connected", "database", database)
	return &Executor{client: client, db: client.Database(database), timeout: timeout}, nil
}

// Aggregate runs pipeline on the named collection and returns all result
// documents.
func (e *Executor) Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.M, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cursor, err := e.db.Collection(collection).Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, &aggregation.ExecutionError{Collection: collection, Err: err}
	}

	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, &aggregation.ExecutionError{Collection: collection, Err: err}
	}
	return docs, nil
}

// Ping checks that the primary is reachable.
func (e *Executor) Ping(ctx context.Context) error {
	return e.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (e *Executor) Close(ctx context.Context) error {
	return e.client.Disconnect(ctx)
}
