// Package broadcast publishes live signals and prophecy batches to
// subscribers over Redis pub/sub, with a small websocket relay for local
// consumers.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Pub/sub topics.
const (
	TopicSignals    = "signals:live"
	TopicProphecies = "prophecies:today"
)

// Publisher fans a JSON-encoded message out to a topic's subscribers.
type Publisher interface {
	Publish(ctx context.Context, topic string, message any) error
}

// RedisPublisher publishes through Redis pub/sub.
type RedisPublisher struct {
	client redis.Cmdable
}

// NewRedisPublisher wraps a Redis client.
func NewRedisPublisher(client redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message for %s: %w", topic, err)
	}
	if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// MemoryPublisher records published messages for tests.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

// NewMemoryPublisher creates an empty recorder.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{messages: map[string][][]byte{}}
}

func (p *MemoryPublisher) Publish(_ context.Context, topic string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[topic] = append(p.messages[topic], data)
	return nil
}

// Messages returns the raw payloads published to a topic.
func (p *MemoryPublisher) Messages(topic string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.messages[topic]))
	copy(out, p.messages[topic])
	return out
}
