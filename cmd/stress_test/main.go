package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/adapter/storage"
	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/core/service"
	"github.com/rl1809/book-order/internal/port"
)

const (
	bookID            = "978-0000000001"
	initialStock      = 20
	totalOrders       = 50
	lowStockThreshold = 5
)

// eventCounter is the broker of the stress run; it only counts.
type eventCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *eventCounter) Publish(_ context.Context, msg port.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[msg.Topic]++
	return nil
}

func (c *eventCounter) count(t domain.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[string(t)]
}

func main() {
	verbose := flag.Bool("v", false, "log every service call")
	flag.Parse()

	log := zap.NewNop()
	if *verbose {
		log, _ = zap.NewDevelopment()
	}

	if ok := run(log); !ok {
		os.Exit(1)
	}
}

func run(log *zap.Logger) bool {
	ctx := context.Background()

	sink := &eventCounter{counts: make(map[string]int)}
	store := storage.NewMemoryStore(sink, log)

	books := service.NewBookService(store.Books(), store, log)
	inventory := service.NewInventoryService(store.Inventory(), store, store, lowStockThreshold, log)
	orders := service.NewOrderService(books, inventory, store.Orders(), store, store, storage.UUIDGenerator{}, log)

	book, _ := domain.NewBook(bookID, "Stress Testing in Practice", "Load Generator", decimal.RequireFromString("19.99"))
	if _, err := books.RegisterBook(ctx, book); err != nil {
		fmt.Printf("setup failed: %v\n", err)
		return false
	}
	item, _ := domain.NewInventoryItem(bookID, initialStock)
	if _, err := inventory.RegisterItem(ctx, item); err != nil {
		fmt.Printf("setup failed: %v\n", err)
		return false
	}

	// Every order passes the advisory stock check at creation time.
	ids := make([]string, 0, totalOrders)
	for i := 0; i < totalOrders; i++ {
		o, err := orders.CreateOrder(ctx, fmt.Sprintf("customer-%d", i), []service.OrderItem{{ProductID: bookID, Quantity: 1}})
		if err != nil {
			fmt.Printf("create order %d failed: %v\n", i, err)
			return false
		}
		ids = append(ids, o.ID())
	}

	var (
		confirmed    atomic.Int32
		insufficient atomic.Int32
		otherErrors  atomic.Int32
		confirmedIDs sync.Map
		wg           sync.WaitGroup
	)
	start := time.Now()

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := orders.ConfirmOrder(ctx, id)
			switch {
			case err == nil:
				confirmed.Add(1)
				confirmedIDs.Store(id, struct{}{})
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				otherErrors.Add(1)
			}
		}(id)
	}
	wg.Wait()

	// Cancel half of the confirmed orders concurrently; their stock returns.
	var cancelled atomic.Int32
	n := 0
	confirmedIDs.Range(func(key, _ any) bool {
		if n%2 == 0 {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := orders.CancelOrder(ctx, id); err == nil {
					cancelled.Add(1)
				} else {
					otherErrors.Add(1)
				}
			}(key.(string))
		}
		n++
		return true
	})
	wg.Wait()
	elapsed := time.Since(start)

	final, err := inventory.GetStock(ctx, bookID)
	if err != nil {
		fmt.Printf("read stock failed: %v\n", err)
		return false
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:      %d\n", initialStock)
	fmt.Printf("Orders:             %d\n", totalOrders)
	fmt.Printf("Confirmed:          %d\n", confirmed.Load())
	fmt.Printf("Insufficient Stock: %d\n", insufficient.Load())
	fmt.Printf("Cancelled:          %d\n", cancelled.Load())
	fmt.Printf("Other Errors:       %d\n", otherErrors.Load())
	fmt.Printf("Final Stock:        %d\n", final.Stock())
	fmt.Printf("Low-Stock Events:   %d\n", sink.count(domain.EventProductStockLow))
	fmt.Printf("Duration:           %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	check := func(cond bool, format string, args ...any) {
		if cond {
			fmt.Printf("PASS: "+format+"\n", args...)
			return
		}
		fmt.Printf("FAIL: "+format+"\n", args...)
		ok = false
	}

	check(confirmed.Load() == initialStock, "exactly %d orders confirmed", initialStock)
	check(insufficient.Load() == totalOrders-initialStock, "%d confirmations rejected for stock", totalOrders-initialStock)
	check(otherErrors.Load() == 0, "no unexpected errors")
	expected := initialStock - int(confirmed.Load()) + int(cancelled.Load())
	check(final.Stock() == expected, "stock balances to %d", expected)
	check(final.Stock() >= 0, "stock never negative")
	// Deductions bring stock from 5 down to 0: six events.
	check(sink.count(domain.EventProductStockLow) == lowStockThreshold+1, "one low-stock event per deduction at or below %d", lowStockThreshold)
	check(sink.count(domain.EventOrderCreated) == totalOrders, "one OrderCreated event per order")
	check(sink.count(domain.EventOrderCancelled) == int(cancelled.Load()), "one OrderCancelled event per cancellation")
	return ok
}
