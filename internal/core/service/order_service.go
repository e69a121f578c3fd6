package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/port"
)

// OrderItem is one requested product and quantity of a new order.
type OrderItem struct {
	ProductID string
	Quantity  int
}

type OrderService struct {
	books     *BookService
	inventory *InventoryService
	orders    port.OrderRepository
	events    port.EventPublisher
	uow       port.UnitOfWork
	ids       port.IDGenerator
	logger    *zap.Logger
}

func NewOrderService(
	books *BookService,
	inventory *InventoryService,
	orders port.OrderRepository,
	events port.EventPublisher,
	uow port.UnitOfWork,
	ids port.IDGenerator,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		books:     books,
		inventory: inventory,
		orders:    orders,
		events:    events,
		uow:       uow,
		ids:       ids,
		logger:    logger.Named("orders"),
	}
}

// CreateOrder places a PENDING order priced at the current catalog prices.
// Stock is only checked here; it is deducted by ConfirmOrder.
func (s *OrderService) CreateOrder(ctx context.Context, customerName string, items []OrderItem) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.Int("order.items", len(items)))

	if err := validateRequest(customerName, items); err != nil {
		recordError(span, err)
		return nil, err
	}

	var created *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		lines := make([]domain.OrderLine, 0, len(items))
		for _, item := range items {
			line, err := s.priceLine(ctx, item)
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}

		order, err := domain.NewOrder(s.ids.NewID(), customerName, lines)
		if err != nil {
			return err
		}

		created, err = s.orders.Save(ctx, order)
		if err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		if err := s.events.Publish(ctx, domain.NewOrderCreatedEvent(created)); err != nil {
			return fmt.Errorf("publish order created: %w", err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", created.ID()))
	s.logger.Info("order created",
		zap.String("order_id", created.ID()),
		zap.String("customer", created.CustomerName()),
		zap.Int("lines", len(created.Lines())),
	)
	return created, nil
}

// ConfirmOrder deducts the stock of every line and confirms the order.
// Any failure leaves the order and all inventory untouched.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.startOrderSpan(ctx, "OrderService.ConfirmOrder", orderID)
	defer span.End()

	var confirmed *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}

		// The transition is checked before touching stock; nothing is
		// persisted until every deduction has succeeded.
		if err := order.Confirm(); err != nil {
			return err
		}

		for _, line := range order.Lines() {
			if _, err := s.inventory.DeductStock(ctx, line.ProductID(), line.Quantity()); err != nil {
				return err
			}
		}

		confirmed, err = s.orders.Save(ctx, order)
		if err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.Info("order confirmed", zap.String("order_id", orderID))
	return confirmed, nil
}

// CancelOrder cancels a PENDING or CONFIRMED order, releasing the stock a
// confirmed order had deducted.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.startOrderSpan(ctx, "OrderService.CancelOrder", orderID)
	defer span.End()

	var cancelled *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}

		release, err := order.Cancel()
		if err != nil {
			return err
		}

		for _, line := range release {
			if err := s.inventory.ReleaseStock(ctx, line.ProductID(), line.Quantity()); err != nil {
				return err
			}
		}

		cancelled, err = s.orders.Save(ctx, order)
		if err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		if err := s.events.Publish(ctx, domain.NewOrderCancelledEvent(cancelled)); err != nil {
			return fmt.Errorf("publish order cancelled: %w", err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.Info("order cancelled", zap.String("order_id", orderID))
	return cancelled, nil
}

// DeliverOrder completes fulfilment of a CONFIRMED order.
func (s *OrderService) DeliverOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.startOrderSpan(ctx, "OrderService.DeliverOrder", orderID)
	defer span.End()

	var delivered *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.Deliver(); err != nil {
			return err
		}
		delivered, err = s.orders.Save(ctx, order)
		if err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.Info("order delivered", zap.String("order_id", orderID))
	return delivered, nil
}

// FindOrderByID returns (nil, nil) when the order does not exist.
func (s *OrderService) FindOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	orders, err := s.orders.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) priceLine(ctx context.Context, item OrderItem) (domain.OrderLine, error) {
	book, err := s.books.GetBook(ctx, item.ProductID)
	if err != nil {
		return domain.OrderLine{}, err
	}

	if err := s.inventory.CheckStock(ctx, item.ProductID, item.Quantity); err != nil {
		return domain.OrderLine{}, err
	}

	return domain.NewOrderLine(item.ProductID, item.Quantity, book.Price())
}

func (s *OrderService) load(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		s.logger.Warn("order not found", zap.String("order_id", orderID))
		return nil, domain.NewOrderNotFound(orderID)
	}
	return order, nil
}

func (s *OrderService) startOrderSpan(ctx context.Context, name, orderID string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(attribute.String("order.id", orderID))
	return ctx, span
}

func validateRequest(customerName string, items []OrderItem) error {
	if err := domain.RequireText(customerName, "customerName", domain.EntityOrder); err != nil {
		return err
	}
	if err := domain.RequireNonEmpty(items, "items", domain.EntityOrder); err != nil {
		return err
	}
	for _, item := range items {
		if err := domain.RequireText(item.ProductID, "productId", domain.EntityOrderLine); err != nil {
			return err
		}
		if err := domain.RequirePositiveInt(item.Quantity, "quantity", domain.EntityOrderLine); err != nil {
			return err
		}
	}
	return nil
}
