package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for runs without Redis. Its contents
// are lost on restart.
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string][][]byte
	now    func() time.Time
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queues: make(map[string][][]byte),
		now:    time.Now,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, account string, payload map[string]interface{}) (string, int64, error) {
	signalID, raw, err := stamp(payload, q.now())
	if err != nil {
		return "", 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	key := Key(account)
	q.queues[key] = append(q.queues[key], raw)
	return signalID, int64(len(q.queues[key])), nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, account string) (json.RawMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := Key(account)
	pending := q.queues[key]
	if len(pending) == 0 {
		return nil, nil
	}
	next := pending[0]
	q.queues[key] = pending[1:]
	return json.RawMessage(next), nil
}

func (q *MemoryQueue) Len(ctx context.Context, account string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.queues[Key(account)])), nil
}
