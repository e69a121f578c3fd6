package messaging

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/book-order/internal/port"
)

// RedisPublisher fans events out over Redis pub/sub, one channel per
// event type.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, channelPrefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: channelPrefix}
}

func (p *RedisPublisher) Channel(topic string) string {
	return p.prefix + topic
}

func (p *RedisPublisher) Publish(ctx context.Context, msg port.Message) error {
	if err := p.client.Publish(ctx, p.Channel(msg.Topic), msg.Payload).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

// Close is a no-op; the client is shared and closed by its owner.
func (p *RedisPublisher) Close() error { return nil }
