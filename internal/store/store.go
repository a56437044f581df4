// Package store opens the artifact store selected by configuration.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/terrainkit/internal/config"
	"github.com/freeeve/terrainkit/internal/repository"
	"github.com/freeeve/terrainkit/internal/repository/memory"
	"github.com/freeeve/terrainkit/internal/repository/postgres"
	redisrepo "github.com/freeeve/terrainkit/internal/repository/redis"
)

// Open connects to the configured backend. The returned close function
// releases its connections.
func Open(ctx context.Context, cfg *config.Config) (repository.Store, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		log.Info().Msg("Using in-memory analysis store")
		return memory.NewStore(), func() error { return nil }, nil

	case config.StoreRedis:
		client, err := redisrepo.NewClient(cfg.RedisURL, cfg.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Dur("ttl", cfg.RedisTTL).Msg("Using Redis analysis store")
		return client, client.Close, nil

	case config.StorePostgres:
		db, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("Using Postgres analysis store")
		return postgres.NewArtifactRepo(db), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q (want memory, redis or postgres)", cfg.Store)
}
