package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collections groups the storefront's Mongo collections.
type Collections struct {
	Client *mongo.Client

	Products             *mongo.Collection
	Customers            *mongo.Collection
	Orders               *mongo.Collection
	PendingNotifications *mongo.Collection
	Idempotency          *mongo.Collection
}

// Connect dials MongoDB, pings it and returns the storefront collections.
func Connect(ctx context.Context, uri, database string) (*Collections, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return FromDatabase(client, client.Database(database)), nil
}

// FromDatabase binds the collections of an already connected database.
func FromDatabase(client *mongo.Client, database *mongo.Database) *Collections {
	return &Collections{
		Client:               client,
		Products:             database.Collection("produtos"),
		Customers:            database.Collection("clientes"),
		Orders:               database.Collection("orders"),
		PendingNotifications: database.Collection("pending_notifications"),
		Idempotency:          database.Collection("idempotency"),
	}
}

// Close disconnects the underlying client.
func (c *Collections) Close(ctx context.Context) error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Disconnect(ctx)
}
