package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-progression-service/internal/domain"
)

// ResultCache is the Redis fallback tier for quiz history and stats.
// Entries are JSON blobs; corrupt data is logged and treated as absent
// rather than propagated, so a damaged cache reads as "no prior data".
type ResultCache struct {
	client *redis.Client
	log    *zap.Logger
}

func NewResultCache(client *redis.Client, log *zap.Logger) *ResultCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResultCache{client: client, log: log}
}

func (c *ResultCache) AppendResult(ctx context.Context, key string, result domain.QuizResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.RPush(ctx, c.historyKey(key), data).Err()
}

func (c *ResultCache) CachedHistory(ctx context.Context, key string) ([]domain.QuizResult, error) {
	entries, err := c.client.LRange(ctx, c.historyKey(key), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	history := make([]domain.QuizResult, 0, len(entries))
	for _, entry := range entries {
		var result domain.QuizResult
		if err := json.Unmarshal([]byte(entry), &result); err != nil {
			c.log.Warn("dropping corrupt cached result", zap.String("key", key), zap.Error(err))
			continue
		}
		history = append(history, result)
	}
	return history, nil
}

func (c *ResultCache) PutStats(ctx context.Context, key string, stats domain.UserStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.statsKey(key), data, 0).Err()
}

func (c *ResultCache) CachedStats(ctx context.Context, key string) (domain.UserStats, bool, error) {
	data, err := c.client.Get(ctx, c.statsKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.UserStats{}, false, nil
		}
		return domain.UserStats{}, false, err
	}
	var stats domain.UserStats
	if err := json.Unmarshal(data, &stats); err != nil {
		c.log.Warn("dropping corrupt cached stats", zap.String("key", key), zap.Error(err))
		return domain.UserStats{}, false, nil
	}
	return stats, true, nil
}

func (c *ResultCache) historyKey(identityKey string) string {
	return "history:" + identityKey
}

func (c *ResultCache) statsKey(identityKey string) string {
	return "stats:" + identityKey
}
