package port

import "context"

// Message is an encoded domain event on its way to a broker.
type Message struct {
	ID      string
	Topic   string
	Key     string
	Payload []byte
}

type MessagePublisher interface {
	Publish(ctx context.Context, msg Message) error
}
