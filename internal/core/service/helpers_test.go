package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/book-order/internal/adapter/messaging"
	"github.com/rl1809/book-order/internal/adapter/storage"
	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/port"
)

// recordingSink collects the events a store hands to the broker.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingSink) Publish(_ context.Context, msg port.Message) error {
	event, err := messaging.DecodeEvent(msg.Payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) ofType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (g *sequentialIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("order-%03d", g.n)
}

type testEnv struct {
	store     *storage.MemoryStore
	sink      *recordingSink
	books     *BookService
	inventory *InventoryService
	orders    *OrderService
}

func newTestEnv(t *testing.T, threshold int) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	sink := &recordingSink{}
	store := storage.NewMemoryStore(sink, logger)

	books := NewBookService(store.Books(), store, logger)
	inventory := NewInventoryService(store.Inventory(), store, store, threshold, logger)
	orders := NewOrderService(books, inventory, store.Orders(), store, store, &sequentialIDs{}, logger)

	return &testEnv{store: store, sink: sink, books: books, inventory: inventory, orders: orders}
}

// addBook registers a book with its stock and forgets the setup events.
func (e *testEnv) addBook(t *testing.T, id, price string, stock int) {
	t.Helper()
	ctx := context.Background()

	book, err := domain.NewBook(id, "Title "+id, "Author", decimal.RequireFromString(price))
	require.NoError(t, err)
	_, err = e.books.RegisterBook(ctx, book)
	require.NoError(t, err)

	item, err := domain.NewInventoryItem(id, stock)
	require.NoError(t, err)
	_, err = e.inventory.RegisterItem(ctx, item)
	require.NoError(t, err)

	e.sink.reset()
}

func (e *testEnv) stock(t *testing.T, id string) int {
	t.Helper()
	item, err := e.inventory.GetStock(context.Background(), id)
	require.NoError(t, err)
	return item.Stock()
}
