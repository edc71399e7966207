package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps each account queue in a Redis list. RPUSH and LPOP are
// atomic, so concurrent producers and pollers never lose a signal.
type RedisQueue struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisQueue connects to the Redis server at url, e.g. redis://localhost:6379/0.
func NewRedisQueue(url string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisQueueFromClient(redis.NewClient(opts)), nil
}

// NewRedisQueueFromClient wraps an existing client.
func NewRedisQueueFromClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, now: time.Now}
}

func (q *RedisQueue) Enqueue(ctx context.Context, account string, payload map[string]interface{}) (string, int64, error) {
	signalID, raw, err := stamp(payload, q.now())
	if err != nil {
		return "", 0, err
	}

	size, err := q.client.RPush(ctx, Key(account), raw).Result()
	if err != nil {
		return "", 0, fmt.Errorf("failed to enqueue signal: %w", err)
	}
	return signalID, size, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, account string) (json.RawMessage, error) {
	raw, err := q.client.LPop(ctx, Key(account)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue signal: %w", err)
	}
	return json.RawMessage(raw), nil
}

func (q *RedisQueue) Len(ctx context.Context, account string) (int64, error) {
	n, err := q.client.LLen(ctx, Key(account)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}

// Ping checks the connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close closes the client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
