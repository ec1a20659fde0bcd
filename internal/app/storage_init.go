package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/ejjahanieklu/ehn/internal/docstore"
	"github.com/ejjahanieklu/ehn/internal/storage/memory"
	"github.com/ejjahanieklu/ehn/internal/storage/mongo"
	"github.com/ejjahanieklu/ehn/internal/storage/postgres"
)

// OpenGateway открывает хранилище документов, выбранное в storage.driver.
// Используется сервисом и утилитами обслуживания.
func OpenGateway(ctx context.Context, cfg Config, logger *log.Entry) (docstore.Gateway, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore(), nil

	case StorageDriverMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("storage.mongo.uri is required for %s storage", StorageDriverMongo)
		}
		mode, err := mongo.ParseMode(cfg.MongoMode)
		if err != nil {
			return nil, err
		}
		gateway, err := mongo.Open(ctx, mongo.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Mode:     mode,
		})
		if err != nil {
			return nil, fmt.Errorf("open mongo storage: %w", err)
		}
		return gateway, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage.postgres.dsn is required for %s storage", StorageDriverPostgres)
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close(ctx)
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q (use %s|%s|%s)",
			cfg.StorageDriver, StorageDriverMemory, StorageDriverMongo, StorageDriverPostgres)
	}
}
