//go:build sqlite_cgo

package storage

// CGO SQLite driver:
//   CGO_ENABLED=1 go build -tags sqlite_cgo ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql name of the SQLite driver.
const DriverName = "sqlite3"

func sqliteDSN(dsn string) string { return dsn }
