package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pulsecheck/internal/domain"
)

// RedisPassQueue реализует очередь задач на проходы на базе Redis lists.
type RedisPassQueue struct {
	client *redis.Client
	key    string
}

var _ domain.PassQueue = (*RedisPassQueue)(nil)

// NewRedisPassQueue создаёт очередь по указанному ключу.
func NewRedisPassQueue(client *redis.Client, key string) *RedisPassQueue {
	return &RedisPassQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisPassQueue) Enqueue(ctx context.Context, job domain.PassJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RedisPassQueue) Pop(ctx context.Context) (domain.PassJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.PassJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.PassJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.PassJob{}, err
		}
		if len(res) != 2 {
			return domain.PassJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.PassJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.PassJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}
