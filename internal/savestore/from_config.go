package savestore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/config"
)

// FromConfig builds the backend selected by cfg.SaveBackend and returns a
// close function for its underlying connection.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, func(), error) {
	switch cfg.SaveBackend {
	case config.SaveBackendFile:
		backend, err := NewFileBackend(cfg.SaveDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() {}, nil

	case config.SaveBackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.GetDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create postgres connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("unable to ping postgres database: %w", err)
		}
		logger.Info("Connected to PostgreSQL", zap.String("host", cfg.DBHost))
		backend, err := NewPostgresBackend(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return backend, pool.Close, nil

	case config.SaveBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		backend, err := NewRedisBackend(ctx, client, logger)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		logger.Info("Connected to Redis", zap.String("address", cfg.RedisAddr))
		return backend, func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown save backend: '%s'", cfg.SaveBackend)
	}
}
