package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, ts)

	l, _ := NewOrderLine("A", 1, decimal.NewFromInt(1))
	o, err := NewOrder("o-9", "Bob", []OrderLine{l})
	require.NoError(t, err)

	created := NewOrderCreatedEvent(o)
	assert.Equal(t, EventOrderCreated, created.EventType())
	assert.Equal(t, "o-9", created.AggregateID())
	assert.Equal(t, "Bob", created.CustomerName)
	assert.Equal(t, ts, created.OccurredAt())

	cancelled := NewOrderCancelledEvent(o)
	assert.Equal(t, EventOrderCancelled, cancelled.EventType())
	assert.Equal(t, "o-9", cancelled.AggregateID())

	item, _ := NewInventoryItem("X", 5)
	low := NewProductStockLowEvent(item)
	assert.Equal(t, EventProductStockLow, low.EventType())
	assert.Equal(t, "X", low.AggregateID())
	assert.Equal(t, 5, low.CurrentStock)
}
