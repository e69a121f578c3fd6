package main

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/core/service"
)

type seedBook struct {
	isbn   string
	title  string
	author string
	price  string
	stock  int
}

var catalog = []seedBook{
	{"978-0321765723", "The Lord of the Rings", "J.R.R. Tolkien", "25.00", 15},
	{"978-0132350884", "Clean Code", "Robert C. Martin", "35.00", 8},
	{"978-0134786275", "Effective Java", "Joshua Bloch", "40.00", 20},
	{"978-1491904244", "Designing Data-Intensive Applications", "Martin Kleppmann", "60.00", 5},
}

// seedCatalog registers the demo books and their stock. Books already
// present are left alone, so restarting against a database is harmless.
func seedCatalog(ctx context.Context, books *service.BookService, inventory *service.InventoryService, log *zap.Logger) error {
	for _, s := range catalog {
		_, err := books.GetBook(ctx, s.isbn)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrBookNotFound) {
			return err
		}

		book, err := domain.NewBook(s.isbn, s.title, s.author, decimal.RequireFromString(s.price))
		if err != nil {
			return err
		}
		if _, err := books.RegisterBook(ctx, book); err != nil {
			return err
		}

		item, err := domain.NewInventoryItem(s.isbn, s.stock)
		if err != nil {
			return err
		}
		if _, err := inventory.RegisterItem(ctx, item); err != nil {
			return err
		}
		log.Info("seeded book", zap.String("isbn", s.isbn), zap.Int("stock", s.stock))
	}
	return nil
}
