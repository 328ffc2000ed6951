package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quantlens/quantlens/backend/gateway/pkg/logger"
)

const connectAttempts = 5

// ConnectMongo opens a connection and verifies it with a ping.
// Caller should call client.Disconnect(ctx) when done.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectMongoWithRetry retries ConnectMongo with exponential backoff. Mongo
// often comes up after the gateway in compose environments, so transient
// failures at boot are expected.
func ConnectMongoWithRetry(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	var client *mongo.Client
	var err error
	backoff := time.Second
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		client, err = ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, connectAttempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, err
}

// UsersCollection returns the collection backing the user repository.
func UsersCollection(client *mongo.Client, db string) *mongo.Collection {
	return client.Database(db).Collection("users")
}
