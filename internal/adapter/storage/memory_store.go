package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/adapter/messaging"
	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/port"
)

type memTxKey struct{}

// memTx holds the writes of one unit of work until commit.
type memTx struct {
	books     map[string]*domain.Book
	inventory map[string]*domain.InventoryItem
	orders    map[string]*domain.Order
	events    []port.Message
}

// MemoryStore keeps every aggregate in process. Units of work run one at a
// time; their writes and events are buffered and applied on commit, then
// the events are handed to sink.
type MemoryStore struct {
	mu        sync.Mutex
	books     map[string]*domain.Book
	inventory map[string]*domain.InventoryItem
	orders    map[string]*domain.Order

	sink   port.MessagePublisher
	logger *zap.Logger
}

// NewMemoryStore returns an empty store. A nil sink drops events.
func NewMemoryStore(sink port.MessagePublisher, logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		books:     make(map[string]*domain.Book),
		inventory: make(map[string]*domain.InventoryItem),
		orders:    make(map[string]*domain.Order),
		sink:      sink,
		logger:    logger.Named("memory"),
	}
}

func (s *MemoryStore) Books() *MemoryBookRepository           { return &MemoryBookRepository{s} }
func (s *MemoryStore) Inventory() *MemoryInventoryRepository { return &MemoryInventoryRepository{s} }
func (s *MemoryStore) Orders() *MemoryOrderRepository         { return &MemoryOrderRepository{s} }

func (s *MemoryStore) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}

	events, err := s.run(ctx, fn)
	if err != nil {
		return err
	}
	s.flush(ctx, events)
	return nil
}

func (s *MemoryStore) run(ctx context.Context, fn func(ctx context.Context) error) ([]port.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		books:     make(map[string]*domain.Book),
		inventory: make(map[string]*domain.InventoryItem),
		orders:    make(map[string]*domain.Order),
	}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		return nil, err
	}

	for id, b := range tx.books {
		s.books[id] = b
	}
	for id, item := range tx.inventory {
		s.inventory[id] = item
	}
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	return tx.events, nil
}

func (s *MemoryStore) flush(ctx context.Context, events []port.Message) {
	if s.sink == nil {
		return
	}
	for _, msg := range events {
		if err := s.sink.Publish(ctx, msg); err != nil {
			s.logger.Error("failed to publish event",
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err),
			)
		}
	}
}

// view runs fn with the current transaction, or under the lock with an
// empty one when called outside a unit of work.
func (s *MemoryStore) view(ctx context.Context, fn func(tx *memTx) error) error {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{})
}

// write runs fn inside the current unit of work, opening one if needed.
func (s *MemoryStore) write(ctx context.Context, fn func(tx *memTx) error) error {
	return s.Do(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(memTxKey{}).(*memTx))
	})
}

// Publish buffers the event in the current unit of work.
func (s *MemoryStore) Publish(ctx context.Context, event domain.Event) error {
	msg, err := messaging.EncodeEvent(event)
	if err != nil {
		return err
	}
	return s.write(ctx, func(tx *memTx) error {
		tx.events = append(tx.events, msg)
		return nil
	})
}

type MemoryBookRepository struct {
	s *MemoryStore
}

func (r *MemoryBookRepository) current(tx *memTx, id string) *domain.Book {
	if b, ok := tx.books[id]; ok {
		return b
	}
	return r.s.books[id]
}

func (r *MemoryBookRepository) FindByID(ctx context.Context, id string) (*domain.Book, error) {
	var out *domain.Book
	err := r.s.view(ctx, func(tx *memTx) error {
		b := r.current(tx, id)
		if b == nil {
			return nil
		}
		var err error
		out, err = cloneBook(b)
		return err
	})
	return out, err
}

func (r *MemoryBookRepository) FindAll(ctx context.Context) ([]*domain.Book, error) {
	var out []*domain.Book
	err := r.s.view(ctx, func(tx *memTx) error {
		for _, id := range mergedKeys(r.s.books, tx.books) {
			b, err := cloneBook(r.current(tx, id))
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	return out, err
}

func (r *MemoryBookRepository) Save(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	var out *domain.Book
	err := r.s.write(ctx, func(tx *memTx) error {
		if err := checkVersion(domain.EntityBook, book.ID(), book.Version(), r.current(tx, book.ID())); err != nil {
			return err
		}
		saved, err := domain.RestoreBook(book.ID(), book.Title(), book.Author(), book.Price(), book.Version()+1)
		if err != nil {
			return err
		}
		tx.books[book.ID()] = saved
		out, err = cloneBook(saved)
		return err
	})
	return out, err
}

type MemoryInventoryRepository struct {
	s *MemoryStore
}

func (r *MemoryInventoryRepository) current(tx *memTx, id string) *domain.InventoryItem {
	if item, ok := tx.inventory[id]; ok {
		return item
	}
	return r.s.inventory[id]
}

func (r *MemoryInventoryRepository) FindByID(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	var out *domain.InventoryItem
	err := r.s.view(ctx, func(tx *memTx) error {
		item := r.current(tx, productID)
		if item == nil {
			return nil
		}
		var err error
		out, err = domain.RestoreInventoryItem(item.ProductID(), item.Stock(), item.Version())
		return err
	})
	return out, err
}

func (r *MemoryInventoryRepository) Save(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error) {
	var out *domain.InventoryItem
	err := r.s.write(ctx, func(tx *memTx) error {
		if err := checkVersion(domain.EntityInventoryItem, item.ProductID(), item.Version(), r.current(tx, item.ProductID())); err != nil {
			return err
		}
		saved, err := domain.RestoreInventoryItem(item.ProductID(), item.Stock(), item.Version()+1)
		if err != nil {
			return err
		}
		tx.inventory[item.ProductID()] = saved
		out, err = domain.RestoreInventoryItem(saved.ProductID(), saved.Stock(), saved.Version())
		return err
	})
	return out, err
}

type MemoryOrderRepository struct {
	s *MemoryStore
}

func (r *MemoryOrderRepository) current(tx *memTx, id string) *domain.Order {
	if o, ok := tx.orders[id]; ok {
		return o
	}
	return r.s.orders[id]
}

func (r *MemoryOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.view(ctx, func(tx *memTx) error {
		o := r.current(tx, id)
		if o == nil {
			return nil
		}
		var err error
		out, err = cloneOrder(o, o.Version())
		return err
	})
	return out, err
}

// FindAll returns orders oldest first, ties broken by id.
func (r *MemoryOrderRepository) FindAll(ctx context.Context) ([]*domain.Order, error) {
	var out []*domain.Order
	err := r.s.view(ctx, func(tx *memTx) error {
		for _, id := range mergedKeys(r.s.orders, tx.orders) {
			o := r.current(tx, id)
			c, err := cloneOrder(o, o.Version())
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().Before(out[j].CreatedAt())
		}
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}

func (r *MemoryOrderRepository) Save(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.write(ctx, func(tx *memTx) error {
		if err := checkVersion(domain.EntityOrder, order.ID(), order.Version(), r.current(tx, order.ID())); err != nil {
			return err
		}
		saved, err := cloneOrder(order, order.Version()+1)
		if err != nil {
			return err
		}
		tx.orders[order.ID()] = saved
		out, err = cloneOrder(saved, saved.Version())
		return err
	})
	return out, err
}

type versioned interface {
	Version() int64
}

// checkVersion is the compare half of the compare-and-swap: version 0 must
// not exist yet, any other version must match the stored one.
func checkVersion(entity domain.EntityType, id string, version int64, stored versioned) error {
	exists := !isNilAggregate(stored)
	switch {
	case version == 0 && !exists:
		return nil
	case version > 0 && exists && stored.Version() == version:
		return nil
	}
	return &domain.ConflictError{Entity: entity, ID: id, Version: version}
}

func isNilAggregate(v versioned) bool {
	switch a := v.(type) {
	case *domain.Book:
		return a == nil
	case *domain.InventoryItem:
		return a == nil
	case *domain.Order:
		return a == nil
	}
	return v == nil
}

func cloneBook(b *domain.Book) (*domain.Book, error) {
	return domain.RestoreBook(b.ID(), b.Title(), b.Author(), b.Price(), b.Version())
}

func cloneOrder(o *domain.Order, version int64) (*domain.Order, error) {
	return domain.RestoreOrder(o.ID(), o.CustomerName(), o.Status(), o.Lines(), version, o.CreatedAt(), o.UpdatedAt())
}

func mergedKeys[V any](committed, pending map[string]V) []string {
	keys := make([]string, 0, len(committed)+len(pending))
	for k := range committed {
		keys = append(keys, k)
	}
	for k := range pending {
		if _, ok := committed[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// MemoryIdempotencyStore is the in-process counterpart of
// RedisIdempotencyStore.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &MemoryIdempotencyStore{keys: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (m *MemoryIdempotencyStore) Acquire(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expires, ok := m.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	m.keys[key] = now.Add(m.ttl)
	return true, nil
}

func (m *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
