package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Book is a catalog entry. Only the title may change after creation.
type Book struct {
	id      string
	title   string
	author  string
	price   decimal.Decimal
	version int64
}

func NewBook(id, title, author string, price decimal.Decimal) (*Book, error) {
	return RestoreBook(id, title, author, price, 0)
}

// RestoreBook rebuilds a persisted book at the given version.
func RestoreBook(id, title, author string, price decimal.Decimal, version int64) (*Book, error) {
	err := firstError(
		RequireText(id, "id", EntityBook),
		RequireText(title, "title", EntityBook),
		RequireText(author, "author", EntityBook),
		RequireMoney(price, "price", EntityBook),
		RequireTrue(version >= 0, "version cannot be negative", EntityBook),
	)
	if err != nil {
		return nil, err
	}

	return &Book{
		id:      id,
		title:   title,
		author:  author,
		price:   price,
		version: version,
	}, nil
}

func (b *Book) ID() string             { return b.id }
func (b *Book) Title() string          { return b.title }
func (b *Book) Author() string         { return b.author }
func (b *Book) Price() decimal.Decimal { return b.price }
func (b *Book) Version() int64         { return b.version }

func (b *Book) UpdateTitle(title string) error {
	if err := RequireText(title, "title", EntityBook); err != nil {
		return err
	}
	b.title = title
	return nil
}

// Equal compares books by identity.
func (b *Book) Equal(other *Book) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.id == other.id
}

func (b *Book) String() string {
	return fmt.Sprintf("Book{id=%s title=%q author=%q price=%s version=%d}", b.id, b.title, b.author, b.price.StringFixed(2), b.version)
}
