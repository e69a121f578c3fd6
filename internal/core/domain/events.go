package domain

import "time"

type EventType string

const (
	EventOrderCreated    EventType = "OrderCreated"
	EventOrderCancelled  EventType = "OrderCancelled"
	EventProductStockLow EventType = "ProductStockLow"
)

// Event is a fact that already happened, published for external consumers.
type Event interface {
	EventType() EventType
	AggregateID() string
	OccurredAt() time.Time
}

type OrderCreatedEvent struct {
	OrderID      string    `json:"order_id"`
	CustomerName string    `json:"customer_name"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{OrderID: o.ID(), CustomerName: o.CustomerName(), Timestamp: now()}
}

func (e OrderCreatedEvent) EventType() EventType  { return EventOrderCreated }
func (e OrderCreatedEvent) AggregateID() string   { return e.OrderID }
func (e OrderCreatedEvent) OccurredAt() time.Time { return e.Timestamp }

type OrderCancelledEvent struct {
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{OrderID: o.ID(), Timestamp: now()}
}

func (e OrderCancelledEvent) EventType() EventType  { return EventOrderCancelled }
func (e OrderCancelledEvent) AggregateID() string   { return e.OrderID }
func (e OrderCancelledEvent) OccurredAt() time.Time { return e.Timestamp }

type ProductStockLowEvent struct {
	ProductID    string    `json:"product_id"`
	CurrentStock int       `json:"current_stock"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewProductStockLowEvent(item *InventoryItem) ProductStockLowEvent {
	return ProductStockLowEvent{ProductID: item.ProductID(), CurrentStock: item.Stock(), Timestamp: now()}
}

func (e ProductStockLowEvent) EventType() EventType  { return EventProductStockLow }
func (e ProductStockLowEvent) AggregateID() string   { return e.ProductID }
func (e ProductStockLowEvent) OccurredAt() time.Time { return e.Timestamp }
