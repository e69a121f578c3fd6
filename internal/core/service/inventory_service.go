package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/port"
)

const DefaultLowStockThreshold = 5

type InventoryService struct {
	inventory         port.InventoryRepository
	events            port.EventPublisher
	uow               port.UnitOfWork
	lowStockThreshold int
	logger            *zap.Logger
}

func NewInventoryService(inventory port.InventoryRepository, events port.EventPublisher, uow port.UnitOfWork, lowStockThreshold int, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		inventory:         inventory,
		events:            events,
		uow:               uow,
		lowStockThreshold: lowStockThreshold,
		logger:            logger.Named("inventory"),
	}
}

func (s *InventoryService) LowStockThreshold() int {
	return s.lowStockThreshold
}

// CheckStock is an advisory read: it mutates nothing and holds no lock.
func (s *InventoryService) CheckStock(ctx context.Context, productID string, quantity int) error {
	if err := domain.RequirePositiveInt(quantity, "quantity", domain.EntityInventoryItem); err != nil {
		return err
	}

	item, err := s.load(ctx, productID)
	if err != nil {
		return err
	}

	return item.CheckAvailability(quantity)
}

// DeductStock removes quantity from the product's stock and publishes a
// ProductStockLowEvent whenever the remaining stock is at or below the
// threshold, including when it already was before this deduction.
func (s *InventoryService) DeductStock(ctx context.Context, productID string, quantity int) (*domain.InventoryItem, error) {
	ctx, span := tracer.Start(ctx, "InventoryService.DeductStock")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int("inventory.quantity", quantity))

	var updated *domain.InventoryItem
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		item, err := s.load(ctx, productID)
		if err != nil {
			return err
		}

		if err := item.Deduct(quantity); err != nil {
			return err
		}

		updated, err = s.inventory.Save(ctx, item)
		if err != nil {
			return fmt.Errorf("save inventory: %w", err)
		}

		if updated.Stock() <= s.lowStockThreshold {
			if err := s.events.Publish(ctx, domain.NewProductStockLowEvent(updated)); err != nil {
				return fmt.Errorf("publish stock low: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.Info("stock deducted",
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("stock", updated.Stock()),
	)
	return updated, nil
}

// ReleaseStock puts back stock deducted by a confirmed order.
func (s *InventoryService) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	if err := domain.RequirePositiveInt(quantity, "quantity", domain.EntityInventoryItem); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "InventoryService.ReleaseStock")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int("inventory.quantity", quantity))

	var stock int
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		item, err := s.load(ctx, productID)
		if err != nil {
			return err
		}

		if err := item.Add(quantity); err != nil {
			return err
		}

		saved, err := s.inventory.Save(ctx, item)
		if err != nil {
			return fmt.Errorf("save inventory: %w", err)
		}
		stock = saved.Stock()
		return nil
	})
	if err != nil {
		recordError(span, err)
		return err
	}

	s.logger.Info("stock released",
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("stock", stock),
	)
	return nil
}

func (s *InventoryService) GetStock(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	return s.load(ctx, productID)
}

// RegisterItem stores a new stock counter.
func (s *InventoryService) RegisterItem(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error) {
	saved, err := s.inventory.Save(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("save inventory: %w", err)
	}
	return saved, nil
}

func (s *InventoryService) load(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	item, err := s.inventory.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("find inventory: %w", err)
	}
	if item == nil {
		s.logger.Warn("inventory item not found", zap.String("product_id", productID))
		return nil, domain.NewInventoryItemNotFound(productID)
	}
	return item, nil
}
