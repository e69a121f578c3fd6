//go:build !sqlite_cgo

package storage

// Pure Go SQLite driver, used by default and by the test suite.
// Build with -tags sqlite_cgo to switch to github.com/mattn/go-sqlite3.

import (
	"strings"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql name of the SQLite driver.
const DriverName = "sqlite"

// sqliteDSN makes the driver write timestamps in a format it parses back.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}
