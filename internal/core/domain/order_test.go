package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *testing.T, ts time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = prev })
}

func line(t *testing.T, product string, qty int, price string) OrderLine {
	t.Helper()
	l, err := NewOrderLine(product, qty, decimal.RequireFromString(price))
	require.NoError(t, err)
	return l
}

func newPendingOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("o-1", "Alice", []OrderLine{line(t, "A", 2, "25.00"), line(t, "B", 1, "35.00")})
	require.NoError(t, err)
	return o
}

func TestNewOrder(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fixedClock(t, created)

	o := newPendingOrder(t)
	assert.Equal(t, OrderStatusPending, o.Status())
	assert.Equal(t, int64(0), o.Version())
	assert.Equal(t, created, o.CreatedAt())
	assert.Equal(t, created, o.UpdatedAt())
	assert.True(t, o.Total().Equal(decimal.RequireFromString("85.00")))
	require.Len(t, o.Lines(), 2)
	assert.Equal(t, "A", o.Lines()[0].ProductID())
}

func TestNewOrderValidation(t *testing.T) {
	l := line(t, "A", 1, "1")

	_, err := NewOrder("o-1", " ", []OrderLine{l})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewOrder("o-1", "Alice", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewOrder("", "Alice", []OrderLine{l})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = RestoreOrder("o-1", "Alice", OrderStatus("SHIPPED"), []OrderLine{l}, 1, time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewOrder("o-1", "Alice", []OrderLine{{}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrderLine(t *testing.T) {
	_, err := NewOrderLine("A", 0, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewOrderLine("A", 1, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrValidation)

	l := line(t, "A", 3, "19.99")
	assert.True(t, l.Subtotal().Equal(decimal.RequireFromString("59.97")))
	assert.True(t, l.Equal(line(t, "A", 3, "19.990")))
	assert.False(t, l.Equal(line(t, "A", 2, "19.99")))
}

func TestOrderLinesAreCopied(t *testing.T) {
	lines := []OrderLine{line(t, "A", 1, "1")}
	o, err := NewOrder("o-1", "Alice", lines)
	require.NoError(t, err)

	lines[0] = line(t, "Z", 9, "9")
	got := o.Lines()
	got[0] = line(t, "Y", 9, "9")

	assert.Equal(t, "A", o.Lines()[0].ProductID())
}

func TestOrderStateMachine(t *testing.T) {
	fixedClock(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	o := newPendingOrder(t)

	later := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	fixedClock(t, later)

	require.NoError(t, o.Confirm())
	assert.Equal(t, OrderStatusConfirmed, o.Status())
	assert.Equal(t, later, o.UpdatedAt())
	assert.Equal(t, int64(0), o.Version())

	err := o.Confirm()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "PENDING")

	require.NoError(t, o.Deliver())
	assert.Equal(t, OrderStatusDelivered, o.Status())
	assert.True(t, o.Status().Terminal())

	_, err = o.Cancel()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "already delivered")
	assert.ErrorIs(t, o.Confirm(), ErrValidation)
	assert.Equal(t, OrderStatusDelivered, o.Status())
}

func TestOrderCancel(t *testing.T) {
	pending := newPendingOrder(t)
	release, err := pending.Cancel()
	require.NoError(t, err)
	assert.Empty(t, release)
	assert.Equal(t, OrderStatusCancelled, pending.Status())

	_, err = pending.Cancel()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "already cancelled")
	assert.Contains(t, pending.Confirm().Error(), "already cancelled")

	confirmed := newPendingOrder(t)
	require.NoError(t, confirmed.Confirm())
	release, err = confirmed.Cancel()
	require.NoError(t, err)
	require.Len(t, release, 2)
	assert.Equal(t, 2, release[0].Quantity())
}

func TestDeliverRequiresConfirmed(t *testing.T) {
	o := newPendingOrder(t)
	err := o.Deliver()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "CONFIRMED")
	assert.Equal(t, OrderStatusPending, o.Status())
}
