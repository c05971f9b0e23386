package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// LogStore reads and appends the free-text log lines workers attach to a job.
// Lines are append-only and order-preserving from the worker's perspective.
type LogStore interface {
	FetchLogs(ctx context.Context, jobID string) ([]string, error)
	Append(ctx context.Context, jobID string, lines ...string) error
}

const logKeyPrefix = "dispatch:logs:"

// RedisLogStore keeps each job's log as a redis list
type RedisLogStore struct {
	rdb *redis.Client
}

func NewRedisLogStore(rdb *redis.Client) *RedisLogStore {
	return &RedisLogStore{rdb: rdb}
}

func (s *RedisLogStore) FetchLogs(ctx context.Context, jobID string) ([]string, error) {
	return s.rdb.LRange(ctx, logKeyPrefix+jobID, 0, -1).Result()
}

func (s *RedisLogStore) Append(ctx context.Context, jobID string, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	args := make([]interface{}, len(lines))
	for i, l := range lines {
		args[i] = l
	}
	return s.rdb.RPush(ctx, logKeyPrefix+jobID, args...).Err()
}

var _ LogStore = (*RedisLogStore)(nil)
