package storage

import (
	"context"
	"fmt"
	"strings"
)

// schema is written with placeholders for the column types that differ
// between dialects.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id {id} PRIMARY KEY,
		title {text} NOT NULL,
		author {text} NOT NULL,
		price {money} NOT NULL,
		version BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		item_id {id} PRIMARY KEY,
		stock INT NOT NULL,
		version BIGINT NOT NULL,
		created_at {ts} NOT NULL DEFAULT {now},
		updated_at {ts} NOT NULL DEFAULT {now},
		CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id {id} PRIMARY KEY,
		customer_name {text} NOT NULL,
		status VARCHAR(16) NOT NULL,
		version BIGINT NOT NULL,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id {id} NOT NULL,
		line_no INT NOT NULL,
		product_id {id} NOT NULL,
		quantity INT NOT NULL,
		unit_price {money} NOT NULL,
		PRIMARY KEY (order_id, line_no),
		FOREIGN KEY (order_id) REFERENCES orders (id)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id {id} PRIMARY KEY,
		aggregate_id {id} NOT NULL,
		topic VARCHAR(64) NOT NULL,
		payload {blob} NOT NULL,
		created_at {ts} NOT NULL
	)`,
}

func (d Dialect) columnTypes() *strings.Replacer {
	switch d {
	case DialectMySQL:
		return strings.NewReplacer("{id}", "VARCHAR(64)", "{text}", "VARCHAR(255)", "{money}", "DECIMAL(12,2)", "{ts}", "TIMESTAMP(6)", "{now}", "CURRENT_TIMESTAMP(6)", "{blob}", "BLOB")
	case DialectPostgres:
		return strings.NewReplacer("{id}", "VARCHAR(64)", "{text}", "TEXT", "{money}", "NUMERIC(12,2)", "{ts}", "TIMESTAMPTZ", "{now}", "CURRENT_TIMESTAMP", "{blob}", "BYTEA")
	default:
		// SQLite keeps prices as TEXT so decimals survive exactly.
		return strings.NewReplacer("{id}", "TEXT", "{text}", "TEXT", "{money}", "TEXT", "{ts}", "TIMESTAMP", "{now}", "CURRENT_TIMESTAMP", "{blob}", "BLOB")
	}
}

// Migrate creates the tables if they do not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	types := s.dialect.columnTypes()
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, types.Replace(stmt)); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
