package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/port"
)

// envelope is the JSON body of every published event.
type envelope struct {
	EventType domain.EventType `json:"event_type"`
	Data      domain.Event     `json:"data"`
}

// EncodeEvent turns a domain event into a broker message keyed by the
// aggregate id, with the event type as topic.
func EncodeEvent(event domain.Event) (port.Message, error) {
	payload, err := json.Marshal(envelope{EventType: event.EventType(), Data: event})
	if err != nil {
		return port.Message{}, fmt.Errorf("marshal %s event: %w", event.EventType(), err)
	}

	return port.Message{
		ID:      uuid.New().String(),
		Topic:   string(event.EventType()),
		Key:     event.AggregateID(),
		Payload: payload,
	}, nil
}

// DecodeEvent is the inverse of EncodeEvent for the known event types.
func DecodeEvent(payload []byte) (domain.Event, error) {
	var raw struct {
		EventType domain.EventType `json:"event_type"`
		Data      json.RawMessage  `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	var (
		event domain.Event
		err   error
	)
	switch raw.EventType {
	case domain.EventOrderCreated:
		var e domain.OrderCreatedEvent
		err = json.Unmarshal(raw.Data, &e)
		event = e
	case domain.EventOrderCancelled:
		var e domain.OrderCancelledEvent
		err = json.Unmarshal(raw.Data, &e)
		event = e
	case domain.EventProductStockLow:
		var e domain.ProductStockLowEvent
		err = json.Unmarshal(raw.Data, &e)
		event = e
	default:
		return nil, fmt.Errorf("unknown event type %q", raw.EventType)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", raw.EventType, err)
	}
	return event, nil
}
