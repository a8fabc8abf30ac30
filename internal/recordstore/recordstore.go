// Package recordstore persists card records. Every store treats the transaction id as an
// idempotency key: inserting a record whose key already exists leaves the stored record alone.
package recordstore

import (
	"context"
	"sort"

	"github.com/tokenized/gacha/internal/platform/config"
	"github.com/tokenized/gacha/internal/platform/db"
	"github.com/tokenized/gacha/internal/pull"

	"github.com/pkg/errors"
)

const (
	SubSystem = "RecordStore" // For logger
)

// Store is a card record store.
type Store interface {
	pull.Store

	Close(ctx context.Context) error
}

// New returns the store selected by cfg.Storage.Type.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Type {
	case "memory":
		return NewMemory(), nil

	case "document":
		masterDB, err := db.New(&db.StorageConfig{
			Region:     cfg.AWS.Region,
			AccessKey:  cfg.AWS.AccessKeyID,
			Secret:     cfg.AWS.SecretAccessKey,
			Bucket:     cfg.Storage.Bucket,
			Root:       cfg.Storage.Root,
			MaxRetries: cfg.AWS.MaxRetries,
		})
		if err != nil {
			return nil, errors.Wrap(err, "document db")
		}
		return NewDocumentStore(masterDB), nil

	case "mongodb":
		return NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)

	case "dynamodb":
		return NewDynamoStore(ctx, DynamoConfig{
			Region:     cfg.AWS.Region,
			AccessKey:  cfg.AWS.AccessKeyID,
			Secret:     cfg.AWS.SecretAccessKey,
			Endpoint:   cfg.Dynamo.Endpoint,
			Table:      cfg.Dynamo.Table,
			MaxRetries: cfg.AWS.MaxRetries,
		})

	case "postgres":
		return OpenPostgres(ctx, cfg.SQL.PostgresURI)

	case "sqlite":
		return OpenSQLite(ctx, cfg.SQL.SQLitePath)

	default:
		return nil, errors.Errorf("Unsupported storage type %q", cfg.Storage.Type)
	}
}

// sortByPulledAt orders records oldest first, keeping the order of equal timestamps.
func sortByPulledAt(records []pull.CardRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PulledAt.Before(records[j].PulledAt)
	})
}
