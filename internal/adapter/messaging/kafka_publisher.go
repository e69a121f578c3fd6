package messaging

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/port"
)

const (
	kafkaBatchTimeout = 10 * time.Millisecond
	kafkaBatchSize    = 100
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes each message to the topic named after its event
// type, keyed by aggregate id so events of one order stay ordered.
type KafkaPublisher struct {
	writer kafkaWriter
	prefix string
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topicPrefix string, logger *zap.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           kafkaBatchTimeout,
		BatchSize:              kafkaBatchSize,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, prefix: topicPrefix, logger: logger.Named("kafka")}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg port.Message) error {
	err := p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: p.prefix + msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Headers: []kafkago.Header{
			{Key: "message_id", Value: []byte(msg.ID)},
			{Key: "event_type", Value: []byte(msg.Topic)},
		},
	})
	if err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}

	p.logger.Debug("message published", zap.String("message_id", msg.ID), zap.String("topic", p.prefix+msg.Topic))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
