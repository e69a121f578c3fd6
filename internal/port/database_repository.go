package port

import (
	"context"

	"github.com/rl1809/book-order/internal/core/domain"
)

// Repositories return (nil, nil) from FindByID when the entity does not exist.
// Save is a compare-and-swap on the version of the passed aggregate: a new
// aggregate (version 0) is inserted, an existing one is updated only if the
// stored version still matches. The returned copy carries version+1;
// a mismatch yields *domain.ConflictError.

type BookRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Book, error)
	FindAll(ctx context.Context) ([]*domain.Book, error)
	Save(ctx context.Context, book *domain.Book) (*domain.Book, error)
}

type InventoryRepository interface {
	FindByID(ctx context.Context, productID string) (*domain.InventoryItem, error)
	Save(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error)
}

type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindAll(ctx context.Context) ([]*domain.Order, error)
	Save(ctx context.Context, order *domain.Order) (*domain.Order, error)
}

// UnitOfWork runs fn inside one transaction carried by the context passed
// to fn. Repositories and the EventPublisher called with that context take
// part in it. fn returning an error discards every write; a nested Do joins
// the outer transaction.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher records domain events. Inside a unit of work the events
// leave the process only after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type IDGenerator interface {
	NewID() string
}
