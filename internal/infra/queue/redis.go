package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
)

// RedisContinuationQueue реализует очередь задач на базе Redis lists.
type RedisContinuationQueue struct {
	client *redis.Client
	key    string
}

var _ domain.ContinuationQueue = (*RedisContinuationQueue)(nil)

// NewRedisContinuationQueue создаёт очередь по указанному ключу.
func NewRedisContinuationQueue(client *redis.Client, key string) *RedisContinuationQueue {
	return &RedisContinuationQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisContinuationQueue) Enqueue(ctx context.Context, job domain.ContinuationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу. При ack(false) задача возвращается в хвост очереди.
func (q *RedisContinuationQueue) Receive(ctx context.Context) (domain.ContinuationJob, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ContinuationJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ContinuationJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ContinuationJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.ContinuationJob{}, nil, errors.New("redis queue: unexpected response")
		}
		var job domain.ContinuationJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.ContinuationJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		raw := res[1]
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.LPush(context.Background(), q.key, raw).Err()
		}
		return job, ack, nil
	}
}
