package savestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
)

const redisKeyPrefix = "save:"

// RedisBackend stores save records as JSON strings under save:{id} keys.
type RedisBackend struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBackend pings the server once and returns the backend.
func NewRedisBackend(ctx context.Context, client *redis.Client, logger *zap.Logger) (*RedisBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisBackend{
		client: client,
		logger: logger.Named("RedisBackend"),
	}, nil
}

func redisKey(saveID string) string {
	return redisKeyPrefix + saveID
}

// Put writes the record, overwriting any record under the same id.
func (b *RedisBackend) Put(ctx context.Context, record *models.SaveRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode save record: %w", err)
	}
	if err := b.client.Set(ctx, redisKey(record.SaveID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write save record to redis: %w", err)
	}
	b.logger.Debug("Save record written", zap.String("saveID", record.SaveID))
	return nil
}

// Get returns the record or models.ErrSaveNotFound.
func (b *RedisBackend) Get(ctx context.Context, saveID string) (*models.SaveRecord, error) {
	data, err := b.client.Get(ctx, redisKey(saveID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: id='%s'", models.ErrSaveNotFound, saveID)
		}
		return nil, fmt.Errorf("failed to read save record '%s' from redis: %w", saveID, err)
	}

	var record models.SaveRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: id='%s': %v", models.ErrCorruptSaveRecord, saveID, err)
	}
	return &record, nil
}

// List scans the save keyspace; values that fail to decode are skipped.
func (b *RedisBackend) List(ctx context.Context) (map[string]models.SaveSummary, error) {
	saves := make(map[string]models.SaveSummary)

	iter := b.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		saveID := strings.TrimPrefix(key, redisKeyPrefix)

		record, err := b.Get(ctx, saveID)
		if err != nil {
			b.logger.Debug("Skipping unreadable save record", zap.String("saveID", saveID), zap.Error(err))
			continue
		}
		saves[saveID] = models.SaveSummary{
			Timestamp: record.Timestamp,
			Metadata:  record.Metadata,
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan save records: %w", err)
	}
	return saves, nil
}

// Delete removes the key, reporting whether it existed.
func (b *RedisBackend) Delete(ctx context.Context, saveID string) (bool, error) {
	removed, err := b.client.Del(ctx, redisKey(saveID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete save record '%s': %w", saveID, err)
	}
	return removed > 0, nil
}

var _ Backend = (*RedisBackend)(nil)
