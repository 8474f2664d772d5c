package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	monitorDomain "github.com/allisson/gatekeeper/internal/monitor/domain"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisSink publishes alerts as JSON on a pub/sub channel.
type RedisSink struct {
	client  redisPublisher
	channel string
}

// NewRedisSink parses url, pings the server and returns a RedisSink.
func NewRedisSink(ctx context.Context, url, channel string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisSink{client: client, channel: channel}, nil
}

// Name implements Sink.
func (s *RedisSink) Name() string {
	return "redis"
}

// Send implements Sink.
func (s *RedisSink) Send(ctx context.Context, alert monitorDomain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

// Close closes the connection pool.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
