package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Queue backed by buffered channels.
type Memory struct {
	mu       sync.Mutex
	channels map[string]chan []byte
	capacity int
}

// NewMemory creates an in-memory queue. Each named queue buffers up to
// capacity jobs; Push fails when full rather than blocking the producer.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{
		channels: map[string]chan []byte{},
		capacity: capacity,
	}
}

func (q *Memory) channel(name string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.channels[name]
	if !ok {
		ch = make(chan []byte, q.capacity)
		q.channels[name] = ch
	}
	return ch
}

func (q *Memory) Push(ctx context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode job for %s: %w", name, err)
	}
	select {
	case q.channel(name) <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("push %s: queue full", name)
	}
}

func (q *Memory) Pop(ctx context.Context, name string, wait time.Duration) ([]byte, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case data := <-q.channel(name):
		return data, nil
	case <-timer.C:
		return nil, ErrEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Memory) Len(_ context.Context, name string) (int64, error) {
	return int64(len(q.channel(name))), nil
}
