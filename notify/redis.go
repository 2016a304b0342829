package notify

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// RedisSink pushes messages onto a Redis list. The dispatcher that talks
// to the messaging provider pops from the other end.
type RedisSink struct {
	client *redis.Client
	queue  string
}

func NewRedisSink(addr, password string, db int, queue string) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisSink{client: client, queue: queue}
}

func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

func (s *RedisSink) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.client.RPush(ctx, s.queue, payload).Err(); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}
