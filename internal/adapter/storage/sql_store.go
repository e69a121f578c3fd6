package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/adapter/messaging"
	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/port"
)

// querier is implemented by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlTxKey struct{}

// SQLStore persists the aggregates in MySQL, Postgres or SQLite. It is the
// UnitOfWork for its repositories: the open *sql.Tx travels in the context.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

func NewSQLStore(db *sql.DB, dialect Dialect, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, logger: logger.Named("sql")}
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) querier(ctx context.Context) querier {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.querier(ctx).ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.querier(ctx).QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.querier(ctx).QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// casUpdate runs a versioned UPDATE inside the current unit of work and
// turns "no row matched" into a conflict.
func (s *SQLStore) casUpdate(ctx context.Context, entity domain.EntityType, id string, version int64, query string, args ...any) error {
	result, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}
	if rows == 0 {
		return &domain.ConflictError{Entity: entity, ID: id, Version: version}
	}
	return nil
}

func (s *SQLStore) insertErr(entity domain.EntityType, id string, err error) error {
	if s.dialect.isDuplicateKey(err) {
		return &domain.ConflictError{Entity: entity, ID: id, Version: 0}
	}
	return fmt.Errorf("insert %s: %w", entity, err)
}

func (s *SQLStore) Books() *SQLBookRepository           { return &SQLBookRepository{s} }
func (s *SQLStore) Inventory() *SQLInventoryRepository { return &SQLInventoryRepository{s} }
func (s *SQLStore) Orders() *SQLOrderRepository         { return &SQLOrderRepository{s} }
func (s *SQLStore) Outbox() *Outbox                     { return &Outbox{s} }

type SQLBookRepository struct {
	s *SQLStore
}

func (r *SQLBookRepository) FindByID(ctx context.Context, id string) (*domain.Book, error) {
	row := r.s.queryRow(ctx, `SELECT id, title, author, price, version FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query book: %w", err)
	}
	return book, nil
}

func (r *SQLBookRepository) FindAll(ctx context.Context) ([]*domain.Book, error) {
	rows, err := r.s.query(ctx, `SELECT id, title, author, price, version FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func (r *SQLBookRepository) Save(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	if book.Version() == 0 {
		_, err := r.s.exec(ctx, `
			INSERT INTO books (id, title, author, price, version)
			VALUES (?, ?, ?, ?, 1)`,
			book.ID(), book.Title(), book.Author(), book.Price().String(),
		)
		if err != nil {
			return nil, r.s.insertErr(domain.EntityBook, book.ID(), err)
		}
	} else {
		err := r.s.casUpdate(ctx, domain.EntityBook, book.ID(), book.Version(), `
			UPDATE books
			SET title = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			book.Title(), book.ID(), book.Version(),
		)
		if err != nil {
			return nil, err
		}
	}
	return domain.RestoreBook(book.ID(), book.Title(), book.Author(), book.Price(), book.Version()+1)
}

type SQLInventoryRepository struct {
	s *SQLStore
}

func (r *SQLInventoryRepository) FindByID(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	var (
		id      string
		stock   int
		version int64
	)
	err := r.s.queryRow(ctx, `SELECT item_id, stock, version FROM inventory WHERE item_id = ?`, productID).
		Scan(&id, &stock, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return domain.RestoreInventoryItem(id, stock, version)
}

func (r *SQLInventoryRepository) Save(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Version() == 0 {
		_, err := r.s.exec(ctx, `
			INSERT INTO inventory (item_id, stock, version)
			VALUES (?, ?, 1)`,
			item.ProductID(), item.Stock(),
		)
		if err != nil {
			return nil, r.s.insertErr(domain.EntityInventoryItem, item.ProductID(), err)
		}
	} else {
		err := r.s.casUpdate(ctx, domain.EntityInventoryItem, item.ProductID(), item.Version(), `
			UPDATE inventory
			SET stock = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE item_id = ? AND version = ?`,
			item.Stock(), item.ProductID(), item.Version(),
		)
		if err != nil {
			return nil, err
		}
	}
	return domain.RestoreInventoryItem(item.ProductID(), item.Stock(), item.Version()+1)
}

type SQLOrderRepository struct {
	s *SQLStore
}

const selectOrder = `SELECT id, customer_name, status, version, created_at, updated_at FROM orders`

func (r *SQLOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var h orderHeader
	err := r.s.queryRow(ctx, selectOrder+` WHERE id = ?`, id).
		Scan(&h.id, &h.customer, &h.status, &h.version, &h.createdAt, &h.updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	lines, err := r.loadLines(ctx, `WHERE order_id = ?`, id)
	if err != nil {
		return nil, err
	}
	return h.restore(lines[id])
}

func (r *SQLOrderRepository) FindAll(ctx context.Context) ([]*domain.Order, error) {
	rows, err := r.s.query(ctx, selectOrder+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	var headers []orderHeader
	for rows.Next() {
		var h orderHeader
		if err := rows.Scan(&h.id, &h.customer, &h.status, &h.version, &h.createdAt, &h.updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		headers = append(headers, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	lines, err := r.loadLines(ctx, "")
	if err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(headers))
	for _, h := range headers {
		order, err := h.restore(lines[h.id])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Save inserts a new order with its lines, or updates status and customer
// of an existing one. Lines never change after creation.
func (r *SQLOrderRepository) Save(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	err := r.s.Do(ctx, func(ctx context.Context) error {
		if order.Version() > 0 {
			return r.s.casUpdate(ctx, domain.EntityOrder, order.ID(), order.Version(), `
				UPDATE orders
				SET customer_name = ?, status = ?, version = version + 1, updated_at = ?
				WHERE id = ? AND version = ?`,
				order.CustomerName(), string(order.Status()), order.UpdatedAt(), order.ID(), order.Version(),
			)
		}

		_, err := r.s.exec(ctx, `
			INSERT INTO orders (id, customer_name, status, version, created_at, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)`,
			order.ID(), order.CustomerName(), string(order.Status()), order.CreatedAt(), order.UpdatedAt(),
		)
		if err != nil {
			return r.s.insertErr(domain.EntityOrder, order.ID(), err)
		}

		for i, line := range order.Lines() {
			_, err := r.s.exec(ctx, `
				INSERT INTO order_lines (order_id, line_no, product_id, quantity, unit_price)
				VALUES (?, ?, ?, ?, ?)`,
				order.ID(), i, line.ProductID(), line.Quantity(), line.UnitPrice().String(),
			)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return domain.RestoreOrder(order.ID(), order.CustomerName(), order.Status(), order.Lines(),
		order.Version()+1, order.CreatedAt(), order.UpdatedAt())
}

func (r *SQLOrderRepository) loadLines(ctx context.Context, where string, args ...any) (map[string][]domain.OrderLine, error) {
	rows, err := r.s.query(ctx, `
		SELECT order_id, product_id, quantity, unit_price
		FROM order_lines `+where+`
		ORDER BY order_id, line_no`, args...)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	lines := make(map[string][]domain.OrderLine)
	for rows.Next() {
		var (
			orderID, productID string
			quantity           int
			price              decimal.Decimal
		)
		if err := rows.Scan(&orderID, &productID, &quantity, &price); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		line, err := domain.NewOrderLine(productID, quantity, price)
		if err != nil {
			return nil, err
		}
		lines[orderID] = append(lines[orderID], line)
	}
	return lines, rows.Err()
}

type orderHeader struct {
	id        string
	customer  string
	status    string
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

func (h orderHeader) restore(lines []domain.OrderLine) (*domain.Order, error) {
	return domain.RestoreOrder(h.id, h.customer, domain.OrderStatus(h.status), lines, h.version, h.createdAt.UTC(), h.updatedAt.UTC())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*domain.Book, error) {
	var (
		id, title, author string
		price             decimal.Decimal
		version           int64
	)
	if err := row.Scan(&id, &title, &author, &price, &version); err != nil {
		return nil, err
	}
	return domain.RestoreBook(id, title, author, price, version)
}

// Outbox is the EventPublisher of the SQL store: events are written to the
// outbox table in the caller's transaction and relayed to the broker by
// worker.OutboxProcessor after commit.
type Outbox struct {
	s *SQLStore
}

func (o *Outbox) Publish(ctx context.Context, event domain.Event) error {
	msg, err := messaging.EncodeEvent(event)
	if err != nil {
		return err
	}
	_, err = o.s.exec(ctx, `
		INSERT INTO outbox (id, aggregate_id, topic, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Key, msg.Topic, msg.Payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// ClaimBatch reads up to limit pending messages, oldest first. Inside a
// unit of work on MySQL or Postgres the rows stay locked until commit.
func (o *Outbox) ClaimBatch(ctx context.Context, limit int) ([]port.Message, error) {
	rows, err := o.s.query(ctx, `
		SELECT id, aggregate_id, topic, payload
		FROM outbox
		ORDER BY created_at, id
		LIMIT ?`+o.s.dialect.lockClause(), limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var msgs []port.Message
	for rows.Next() {
		var m port.Message
		if err := rows.Scan(&m.ID, &m.Key, &m.Topic, &m.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (o *Outbox) Delete(ctx context.Context, id string) error {
	if _, err := o.s.exec(ctx, `DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete outbox event %s: %w", id, err)
	}
	return nil
}

func (o *Outbox) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return o.s.Do(ctx, fn)
}
