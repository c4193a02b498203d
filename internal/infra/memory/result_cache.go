package memory

import (
	"context"
	"sync"

	"quiz-progression-service/internal/domain"
)

// ResultCache is the in-memory fallback tier for quiz history and stats.
type ResultCache struct {
	mu      sync.RWMutex
	history map[string][]domain.QuizResult
	stats   map[string]domain.UserStats
}

func NewResultCache() *ResultCache {
	return &ResultCache{
		history: make(map[string][]domain.QuizResult),
		stats:   make(map[string]domain.UserStats),
	}
}

func (c *ResultCache) AppendResult(_ context.Context, key string, result domain.QuizResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[key] = append(c.history[key], result)
	return nil
}

func (c *ResultCache) CachedHistory(_ context.Context, key string) ([]domain.QuizResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.QuizResult(nil), c.history[key]...), nil
}

func (c *ResultCache) PutStats(_ context.Context, key string, stats domain.UserStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[key] = stats
	return nil
}

func (c *ResultCache) CachedStats(_ context.Context, key string) (domain.UserStats, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats, ok := c.stats[key]
	return stats, ok, nil
}
