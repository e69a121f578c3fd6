package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/port"
)

// LogPublisher stands in for a broker in development: it only logs.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, msg port.Message) error {
	p.logger.Info("event published",
		zap.String("message_id", msg.ID),
		zap.String("topic", msg.Topic),
		zap.String("key", msg.Key),
		zap.ByteString("payload", msg.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
