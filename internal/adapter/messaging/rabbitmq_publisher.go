package messaging

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/port"
)

const (
	rabbitDialAttempts = 10
	rabbitDialBackoff  = 2 * time.Second
)

// RabbitMQPublisher sends every message to one durable queue; the event
// type goes in the AMQP Type property.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *zap.Logger
}

func NewRabbitMQPublisher(url, queueName string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	var (
		conn *amqp.Connection
		err  error
	)

	// RabbitMQ may still be starting when the service comes up.
	for i := 0; i < rabbitDialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("rabbitmq not reachable, retrying",
			zap.Int("attempt", i+1),
			zap.Duration("backoff", rabbitDialBackoff),
			zap.Error(err),
		)
		time.Sleep(rabbitDialBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	return &RabbitMQPublisher{
		conn:    conn,
		channel: ch,
		queue:   queueName,
		logger:  logger.Named("rabbitmq"),
	}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, msg port.Message) error {
	err := p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			MessageId:     msg.ID,
			Type:          msg.Topic,
			CorrelationId: msg.Key,
			ContentType:   "application/json",
			Body:          msg.Payload,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now().UTC(),
		})
	if err != nil {
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}

	p.logger.Debug("message published", zap.String("message_id", msg.ID), zap.String("queue", p.queue))
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
