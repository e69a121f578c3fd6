package messaging

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/config"
	"github.com/rl1809/book-order/internal/port"
)

// Broker is a MessagePublisher that holds a connection.
type Broker interface {
	port.MessagePublisher
	Close() error
}

// New builds the publisher selected by cfg.Kind. rdb is only used by the
// redis kind and may be nil otherwise.
func New(cfg config.Broker, rdb *redis.Client, logger *zap.Logger) (Broker, error) {
	switch cfg.Kind {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg.URL, cfg.Queue, logger)
	case "kafka":
		return NewKafkaPublisher(cfg.Brokers, cfg.TopicPrefix, logger), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis broker needs a redis client")
		}
		return NewRedisPublisher(rdb, cfg.ChannelPrefix), nil
	}
	return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
}
