package handler

import (
	"time"

	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/core/service"
)

type createOrderRequest struct {
	CustomerName string             `json:"customer_name"`
	Items        []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (r createOrderRequest) items() []service.OrderItem {
	items := make([]service.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, service.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items
}

// Prices are rendered as decimal strings. Domain prices never carry more
// than two places, so StringFixed(2) is exact.
type bookResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Price   string `json:"price"`
	Version int64  `json:"version"`
}

type inventoryResponse struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Version   int64  `json:"version"`
}

type orderLineResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	CustomerName string              `json:"customer_name"`
	Status       string              `json:"status"`
	Lines        []orderLineResponse `json:"lines"`
	Total        string              `json:"total"`
	Version      int64               `json:"version"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func toBookResponse(b *domain.Book) bookResponse {
	return bookResponse{
		ID:      b.ID(),
		Title:   b.Title(),
		Author:  b.Author(),
		Price:   b.Price().StringFixed(2),
		Version: b.Version(),
	}
}

func toInventoryResponse(item *domain.InventoryItem) inventoryResponse {
	return inventoryResponse{ProductID: item.ProductID(), Stock: item.Stock(), Version: item.Version()}
}

func toOrderResponse(o *domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines()))
	for _, l := range o.Lines() {
		lines = append(lines, orderLineResponse{
			ProductID: l.ProductID(),
			Quantity:  l.Quantity(),
			UnitPrice: l.UnitPrice().StringFixed(2),
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return orderResponse{
		ID:           o.ID(),
		CustomerName: o.CustomerName(),
		Status:       string(o.Status()),
		Lines:        lines,
		Total:        o.Total().StringFixed(2),
		Version:      o.Version(),
		CreatedAt:    o.CreatedAt(),
		UpdatedAt:    o.UpdatedAt(),
	}
}
