package accountrepository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/superbrain63/superbrain-ai/internal/adapters/database"
	"github.com/superbrain63/superbrain-ai/internal/config"
)

const redisKeyPrefix = "superbrain"

// NewFromConfig connects the account store selected by conf.
// Call close when the repository is no longer used.
func NewFromConfig(ctx context.Context, conf config.Config, logger *slog.Logger) (AccountRepository, func(), error) {
	switch conf.AccountStore() {
	case config.AccountStorePostgres:
		logger.InfoContext(ctx, "Initializing database connection")
		db, err := database.NewCloudsqlPostgresDatabase(conf)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		schemaName := database.GetSchemaName(!conf.IsProduction())
		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}

		logger.InfoContext(ctx, "Initialized postgres account repository", "schema", schemaName)
		return NewPostgres(db, schemaName, time.Now), func() { db.Close() }, nil

	case config.AccountStoreRedis:
		options, err := redis.ParseURL(conf.RedisURL())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(options)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		prefix := redisKeyPrefix
		if !conf.IsProduction() {
			prefix = redisKeyPrefix + "_test"
		}

		logger.InfoContext(ctx, "Initialized redis account repository", "prefix", prefix)
		return NewRedis(client, prefix, time.Now), func() { client.Close() }, nil

	case config.AccountStoreMemory:
		logger.WarnContext(ctx, "Using in-memory account repository. Accounts are lost on restart.")
		return NewMemory(time.Now), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown account store %q", conf.AccountStore())
}
