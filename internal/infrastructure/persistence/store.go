package persistence

import (
	"context"
	"fmt"

	"github.com/propbill/backend/internal/infrastructure/config"
	"github.com/propbill/backend/internal/infrastructure/docstore"
	"github.com/propbill/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// OpenStore builds the document store selected by cfg.Store.Driver. The
// postgres schema is owned by the migrate command; sqlite is migrated here.
func OpenStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (docstore.Store, error) {
	maxOps := cfg.Import.MaxBatchOps
	gormLevel := logger.MapGormLogLevel(cfg.Log.Level)

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		zl.Warn("using in-memory document store; data is lost on exit")
		return docstore.NewMemoryStore(docstore.WithMemoryMaxBatchOps(maxOps)), nil

	case config.StoreDriverMongo:
		store, err := docstore.NewMongoStore(ctx, docstore.MongoConfig{
			URI:                    cfg.Store.Mongo.URI,
			Database:               cfg.Store.Mongo.Database,
			MaxPoolSize:            cfg.Store.Mongo.MaxPoolSize,
			ServerSelectionTimeout: cfg.Store.Mongo.ServerSelectionTimeout,
			Transactions:           cfg.Store.Mongo.Transactions,
			MaxBatchOps:            maxOps,
		}, zl)
		if err != nil {
			return nil, err
		}
		for collection, fields := range IndexedFields {
			for _, field := range fields {
				if err := store.EnsureIndex(ctx, collection, field); err != nil {
					_ = store.Close(ctx)
					return nil, fmt.Errorf("failed to index %s.%s: %w", collection, field, err)
				}
			}
		}
		return store, nil

	case config.StoreDriverPostgres:
		db, err := OpenPostgres(ctx, &cfg.Store.Postgres, zl, gormLevel)
		if err != nil {
			return nil, err
		}
		return docstore.NewGormStore(db, maxOps), nil

	case config.StoreDriverSQLite:
		db, err := OpenSQLite(cfg.Store.SQLitePath, zl, gormLevel)
		if err != nil {
			return nil, err
		}
		store := docstore.NewGormStore(db, maxOps)
		if err := store.AutoMigrate(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("failed to migrate sqlite store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
