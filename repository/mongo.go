package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	AccountsCollection  = "accounts"
	MarkersCollection   = "markers"
	ProductsCollection  = "products"
	DefaultMongoTimeout = 5 * time.Second
)

// ConnectMongo dials uri and verifies the connection with a ping
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, DefaultMongoTimeout)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}

	return cli, nil
}
