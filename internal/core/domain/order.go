package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled, OrderStatusDelivered:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusDelivered
}

var now = func() time.Time { return time.Now().UTC() }

// OrderLine is an immutable value object owned by one order.
type OrderLine struct {
	productID string
	quantity  int
	unitPrice decimal.Decimal
}

func NewOrderLine(productID string, quantity int, unitPrice decimal.Decimal) (OrderLine, error) {
	err := firstError(
		RequireText(productID, "productId", EntityOrderLine),
		RequirePositiveInt(quantity, "quantity", EntityOrderLine),
		RequireMoney(unitPrice, "unitPrice", EntityOrderLine),
	)
	if err != nil {
		return OrderLine{}, err
	}
	return OrderLine{productID: productID, quantity: quantity, unitPrice: unitPrice}, nil
}

func (l OrderLine) ProductID() string          { return l.productID }
func (l OrderLine) Quantity() int              { return l.quantity }
func (l OrderLine) UnitPrice() decimal.Decimal { return l.unitPrice }

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.unitPrice.Mul(decimal.NewFromInt(int64(l.quantity)))
}

// Equal compares all fields; prices compare by value so 25 equals 25.00.
func (l OrderLine) Equal(other OrderLine) bool {
	return l.productID == other.productID && l.quantity == other.quantity && l.unitPrice.Equal(other.unitPrice)
}

// Order is the aggregate root of a purchase request.
type Order struct {
	id           string
	customerName string
	status       OrderStatus
	lines        []OrderLine
	version      int64
	createdAt    time.Time
	updatedAt    time.Time
}

// NewOrder creates a PENDING order.
func NewOrder(id, customerName string, lines []OrderLine) (*Order, error) {
	ts := now()
	return RestoreOrder(id, customerName, OrderStatusPending, lines, 0, ts, ts)
}

func RestoreOrder(id, customerName string, status OrderStatus, lines []OrderLine, version int64, createdAt, updatedAt time.Time) (*Order, error) {
	err := firstError(
		RequireText(id, "id", EntityOrder),
		RequireText(customerName, "customerName", EntityOrder),
		RequireNonEmpty(lines, "lines", EntityOrder),
		RequireTrue(status.Valid(), fmt.Sprintf("unknown order status %q", status), EntityOrder),
		RequireTrue(version >= 0, "version cannot be negative", EntityOrder),
	)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if err := RequireText(l.productID, "lines.productId", EntityOrder); err != nil {
			return nil, err
		}
	}

	return &Order{
		id:           id,
		customerName: customerName,
		status:       status,
		lines:        append([]OrderLine(nil), lines...),
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}, nil
}

func (o *Order) ID() string           { return o.id }
func (o *Order) CustomerName() string { return o.customerName }
func (o *Order) Status() OrderStatus  { return o.status }
func (o *Order) Version() int64       { return o.version }
func (o *Order) CreatedAt() time.Time { return o.createdAt }
func (o *Order) UpdatedAt() time.Time { return o.updatedAt }

// Lines returns a copy in insertion order.
func (o *Order) Lines() []OrderLine {
	return append([]OrderLine(nil), o.lines...)
}

func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Confirm moves a PENDING order to CONFIRMED. Stock must already be deducted.
func (o *Order) Confirm() error {
	if err := o.rejectTerminal(); err != nil {
		return err
	}
	if o.status != OrderStatusPending {
		return &ValidationError{Entity: EntityOrder, Field: "status", Message: "order can only be confirmed if its status is PENDING"}
	}
	o.transition(OrderStatusConfirmed)
	return nil
}

// Cancel moves the order to CANCELLED and returns the lines whose stock
// has to be released: all of them for a CONFIRMED order, none for PENDING.
func (o *Order) Cancel() ([]OrderLine, error) {
	if err := o.rejectTerminal(); err != nil {
		return nil, err
	}
	var release []OrderLine
	if o.status == OrderStatusConfirmed {
		release = o.Lines()
	}
	o.transition(OrderStatusCancelled)
	return release, nil
}

func (o *Order) Deliver() error {
	if err := o.rejectTerminal(); err != nil {
		return err
	}
	if o.status != OrderStatusConfirmed {
		return &ValidationError{Entity: EntityOrder, Field: "status", Message: "order can only be delivered if its status is CONFIRMED"}
	}
	o.transition(OrderStatusDelivered)
	return nil
}

func (o *Order) rejectTerminal() error {
	switch o.status {
	case OrderStatusCancelled:
		return &ValidationError{Entity: EntityOrder, Field: "status", Message: "order already cancelled"}
	case OrderStatusDelivered:
		return &ValidationError{Entity: EntityOrder, Field: "status", Message: "order already delivered"}
	}
	return nil
}

func (o *Order) transition(to OrderStatus) {
	o.status = to
	o.updatedAt = now()
}

func (o *Order) Equal(other *Order) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.id == other.id
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{id=%s customer=%q status=%s lines=%d version=%d}", o.id, o.customerName, o.status, len(o.lines), o.version)
}
