package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Ledger stores completion flags in a Redis hash per identity key. It is
// the local ledger tier for multi-process deployments: guest completions
// live only here, authenticated copies are reconciled from Postgres.
type Ledger struct {
	client *redis.Client
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) Completions(ctx context.Context, key string) (map[string]bool, error) {
	fields, err := l.client.HGetAll(ctx, l.key(key)).Result()
	if err != nil {
		return nil, err
	}
	completed := make(map[string]bool, len(fields))
	for quizID, flag := range fields {
		completed[quizID] = flag == "1"
	}
	return completed, nil
}

func (l *Ledger) MarkCompleted(ctx context.Context, key, quizID string) error {
	return l.client.HSet(ctx, l.key(key), quizID, "1").Err()
}

func (l *Ledger) ReplaceCompletions(ctx context.Context, key string, completed map[string]bool) error {
	pipe := l.client.Pipeline()
	pipe.Del(ctx, l.key(key))
	for quizID, done := range completed {
		if done {
			pipe.HSet(ctx, l.key(key), quizID, "1")
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (l *Ledger) key(identityKey string) string {
	return "ledger:" + identityKey
}
