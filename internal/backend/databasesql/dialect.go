// Package databasesql implements the backend.Backend capability set on top
// of the standard library's database/sql, parameterized by a Dialect so
// MySQL, Redshift, and ODBC/Oracle/Snowflake-shaped drivers can share one
// bookkeeping/lock/transaction implementation (§4.4).
package databasesql

import (
	"context"
	"database/sql"
	"time"
)

// Dialect captures the SQL differences between database/sql-driven DBMSes:
// placeholder style, identifier quoting, bookkeeping column types, and
// whether the driver offers a native advisory lock.
type Dialect interface {
	// Name identifies the dialect for diagnostics (e.g. "mysql", "redshift").
	Name() string
	// Placeholder returns the positional parameter marker for the i-th
	// (1-indexed) argument, e.g. "?" for MySQL or "$1" for Redshift.
	Placeholder(i int) string
	// QuoteIdentifier quotes a SQL identifier per this dialect's rules.
	QuoteIdentifier(name string) string
	// SupportsSavepoints reports whether SAVEPOINT/RELEASE SAVEPOINT/
	// ROLLBACK TO SAVEPOINT are honoured natively.
	SupportsSavepoints() bool
	// BookkeepingDDL returns the CREATE TABLE IF NOT EXISTS statements for
	// the four bookkeeping tables, using this dialect's column types.
	BookkeepingDDL() []string
	// HasNativeLock reports whether AcquireNativeLock/ReleaseNativeLock are
	// implemented. When false, the generic backend falls back to the
	// insert-sentinel protocol in internal/lock.
	HasNativeLock() bool
	// AcquireNativeLock attempts a native advisory lock (e.g. MySQL's
	// GET_LOCK) on the dedicated connection conn, blocking up to timeout.
	AcquireNativeLock(ctx context.Context, conn *sql.Conn, key string, timeout time.Duration) (bool, error)
	// ReleaseNativeLock releases a lock acquired via AcquireNativeLock.
	ReleaseNativeLock(ctx context.Context, conn *sql.Conn, key string) error
}
