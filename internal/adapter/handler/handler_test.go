package handler

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/book-order/internal/adapter/storage"
	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/core/service"
)

const testBookID = "978-0134190440"

type testServices struct {
	books     *service.BookService
	inventory *service.InventoryService
	orders    *service.OrderService
}

// newTestServices builds the services on a memory store holding one book
// priced 10.00 with the given stock.
func newTestServices(t *testing.T, stock int) *testServices {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStore(nil, logger)

	s := &testServices{
		books:     service.NewBookService(store.Books(), store, logger),
		inventory: service.NewInventoryService(store.Inventory(), store, store, 2, logger),
	}
	s.orders = service.NewOrderService(s.books, s.inventory, store.Orders(), store, store, storage.UUIDGenerator{}, logger)

	ctx := context.Background()
	book, err := domain.NewBook(testBookID, "The Go Programming Language", "Donovan", decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	_, err = s.books.RegisterBook(ctx, book)
	require.NoError(t, err)
	item, err := domain.NewInventoryItem(testBookID, stock)
	require.NoError(t, err)
	_, err = s.inventory.RegisterItem(ctx, item)
	require.NoError(t, err)
	return s
}
