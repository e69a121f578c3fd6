package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/port"
)

// storeUnderTest bundles one backend's repositories. published returns the
// events that left the unit of work so far.
type storeUnderTest struct {
	uow       port.UnitOfWork
	books     port.BookRepository
	inventory port.InventoryRepository
	orders    port.OrderRepository
	events    port.EventPublisher
	published func(t *testing.T) []port.Message
}

var errAbort = errors.New("abort")

func runStoreContract(t *testing.T, newStore func(t *testing.T) storeUnderTest) {
	t.Run("BookRoundTrip", func(t *testing.T) { testBookRoundTrip(t, newStore(t)) })
	t.Run("InventoryCompareAndSwap", func(t *testing.T) { testInventoryCAS(t, newStore(t)) })
	t.Run("OrderRoundTrip", func(t *testing.T) { testOrderRoundTrip(t, newStore(t)) })
	t.Run("FindAllOrders", func(t *testing.T) { testFindAllOrders(t, newStore(t)) })
	t.Run("RollbackDiscardsWritesAndEvents", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("NestedUnitOfWorkJoins", func(t *testing.T) { testNestedUnitOfWork(t, newStore(t)) })
	t.Run("CommittedEventsArePublished", func(t *testing.T) { testCommittedEvents(t, newStore(t)) })
}

func testBookRoundTrip(t *testing.T, s storeUnderTest) {
	ctx := context.Background()

	missing, err := s.books.FindByID(ctx, "978-0")
	require.NoError(t, err)
	assert.Nil(t, missing)

	book, err := domain.NewBook("978-1491904244", "Designing Data-Intensive Applications", "Martin Kleppmann", decimal.RequireFromString("60.00"))
	require.NoError(t, err)

	saved, err := s.books.Save(ctx, book)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version())

	loaded, err := s.books.FindByID(ctx, book.ID())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.Equal(book))
	assert.Equal(t, book.Title(), loaded.Title())
	assert.Equal(t, book.Author(), loaded.Author())
	assert.True(t, loaded.Price().Equal(book.Price()))
	assert.Equal(t, int64(1), loaded.Version())

	require.NoError(t, loaded.UpdateTitle("DDIA"))
	renamed, err := s.books.Save(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, int64(2), renamed.Version())

	// loaded still carries version 1.
	_, err = s.books.Save(ctx, loaded)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	_, err = s.books.Save(ctx, book)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	other, _ := domain.NewBook("978-0132350884", "Clean Code", "Robert C. Martin", decimal.RequireFromString("35.00"))
	_, err = s.books.Save(ctx, other)
	require.NoError(t, err)

	all, err := s.books.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "978-0132350884", all[0].ID())
	assert.Equal(t, "DDIA", all[1].Title())
}

func testInventoryCAS(t *testing.T, s storeUnderTest) {
	ctx := context.Background()

	item, err := domain.NewInventoryItem("X", 7)
	require.NoError(t, err)
	saved, err := s.inventory.Save(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version())

	first, err := s.inventory.FindByID(ctx, "X")
	require.NoError(t, err)
	second, err := s.inventory.FindByID(ctx, "X")
	require.NoError(t, err)

	require.NoError(t, first.Deduct(2))
	updated, err := s.inventory.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Stock())
	assert.Equal(t, int64(2), updated.Version())

	require.NoError(t, second.Deduct(1))
	_, err = s.inventory.Save(ctx, second)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.EntityInventoryItem, conflict.Entity)
	assert.Equal(t, int64(1), conflict.Version)

	current, err := s.inventory.FindByID(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 5, current.Stock())
	assert.Equal(t, int64(2), current.Version())

	missing, err := s.inventory.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func newOrder(t *testing.T, id, customer string) *domain.Order {
	t.Helper()
	a, err := domain.NewOrderLine("978-1", 2, decimal.RequireFromString("19.99"))
	require.NoError(t, err)
	b, err := domain.NewOrderLine("978-2", 1, decimal.RequireFromString("35.00"))
	require.NoError(t, err)
	o, err := domain.NewOrder(id, customer, []domain.OrderLine{a, b})
	require.NoError(t, err)
	return o
}

func testOrderRoundTrip(t *testing.T, s storeUnderTest) {
	ctx := context.Background()
	order := newOrder(t, "order-1", "Alice")

	saved, err := s.orders.Save(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version())

	loaded, err := s.orders.FindByID(ctx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.Equal(order))
	assert.Equal(t, "Alice", loaded.CustomerName())
	assert.Equal(t, domain.OrderStatusPending, loaded.Status())
	assert.WithinDuration(t, order.CreatedAt(), loaded.CreatedAt(), time.Millisecond)

	lines := loaded.Lines()
	require.Len(t, lines, 2)
	for i, l := range order.Lines() {
		assert.True(t, l.Equal(lines[i]), "line %d", i)
	}
	assert.True(t, loaded.Total().Equal(decimal.RequireFromString("74.98")))

	require.NoError(t, loaded.Confirm())
	confirmed, err := s.orders.Save(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, int64(2), confirmed.Version())

	reloaded, err := s.orders.FindByID(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, reloaded.Status())
	assert.Len(t, reloaded.Lines(), 2)

	// Stale copy from before the confirm.
	_, err = s.orders.Save(ctx, loaded)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	missing, err := s.orders.FindByID(ctx, "order-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testFindAllOrders(t *testing.T, s storeUnderTest) {
	ctx := context.Background()

	for _, id := range []string{"order-a", "order-b", "order-c"} {
		_, err := s.orders.Save(ctx, newOrder(t, id, "Bob"))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := s.orders.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "order-a", all[0].ID())
	assert.Equal(t, "order-c", all[2].ID())
	for _, o := range all {
		assert.Len(t, o.Lines(), 2)
	}
}

func testRollback(t *testing.T, s storeUnderTest) {
	ctx := context.Background()

	item, _ := domain.NewInventoryItem("X", 3)
	_, err := s.inventory.Save(ctx, item)
	require.NoError(t, err)

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		current, err := s.inventory.FindByID(ctx, "X")
		if err != nil {
			return err
		}
		if err := current.Deduct(3); err != nil {
			return err
		}
		saved, err := s.inventory.Save(ctx, current)
		if err != nil {
			return err
		}
		if err := s.events.Publish(ctx, domain.NewProductStockLowEvent(saved)); err != nil {
			return err
		}
		if _, err := s.orders.Save(ctx, newOrder(t, "order-rollback", "Carol")); err != nil {
			return err
		}

		// Writes are visible inside the unit of work.
		seen, err := s.inventory.FindByID(ctx, "X")
		if err != nil {
			return err
		}
		assert.Equal(t, 0, seen.Stock())
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	after, err := s.inventory.FindByID(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 3, after.Stock())
	assert.Equal(t, int64(1), after.Version())

	order, err := s.orders.FindByID(ctx, "order-rollback")
	require.NoError(t, err)
	assert.Nil(t, order)
	assert.Empty(t, s.published(t))
}

func testNestedUnitOfWork(t *testing.T, s storeUnderTest) {
	ctx := context.Background()

	err := s.uow.Do(ctx, func(ctx context.Context) error {
		item, _ := domain.NewInventoryItem("A", 1)
		if _, err := s.inventory.Save(ctx, item); err != nil {
			return err
		}
		return s.uow.Do(ctx, func(ctx context.Context) error {
			item, _ := domain.NewInventoryItem("B", 1)
			if _, err := s.inventory.Save(ctx, item); err != nil {
				return err
			}
			return errAbort
		})
	})
	require.ErrorIs(t, err, errAbort)

	for _, id := range []string{"A", "B"} {
		item, err := s.inventory.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, item, id)
	}

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		return s.uow.Do(ctx, func(ctx context.Context) error {
			item, _ := domain.NewInventoryItem("C", 4)
			_, err := s.inventory.Save(ctx, item)
			return err
		})
	})
	require.NoError(t, err)
	item, err := s.inventory.FindByID(ctx, "C")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, 4, item.Stock())
}

func testCommittedEvents(t *testing.T, s storeUnderTest) {
	ctx := context.Background()
	order := newOrder(t, "order-evt", "Dave")

	err := s.uow.Do(ctx, func(ctx context.Context) error {
		saved, err := s.orders.Save(ctx, order)
		if err != nil {
			return err
		}
		return s.events.Publish(ctx, domain.NewOrderCreatedEvent(saved))
	})
	require.NoError(t, err)

	msgs := s.published(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, string(domain.EventOrderCreated), msgs[0].Topic)
	assert.Equal(t, "order-evt", msgs[0].Key)
	assert.NotEmpty(t, msgs[0].ID)
	assert.Contains(t, string(msgs[0].Payload), `"customer_name":"Dave"`)
}
