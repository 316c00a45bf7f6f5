// Package sqlite implements the backend.Backend capability set for SQLite
// using the pure-Go ncruces/go-sqlite3 driver. SQLite has no server-side
// advisory lock, so it always uses the insert-sentinel fallback protocol
// (§4.5); savepoints map directly onto SQLite's native SAVEPOINT support.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/deicod/yoyo/internal/backend"
	"github.com/deicod/yoyo/internal/backend/databasesql"
)

func init() {
	backend.Register("sqlite", func(lockKey string) backend.Backend { return New(lockKey) })
}

// New constructs a SQLite backend. SQLite uses the insert-sentinel lock,
// which does not use lockKey.
func New(lockKey string) backend.Backend {
	return databasesql.New("sqlite3", dialect{}, lockKey)
}

type dialect struct{}

func (dialect) Name() string { return "sqlite" }

func (dialect) Placeholder(i int) string { return "?" }

func (dialect) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

func (dialect) SupportsSavepoints() bool { return true }

func (dialect) BookkeepingDDL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS _yoyo_migration (
			migration_id TEXT PRIMARY KEY,
			migration_hash TEXT NOT NULL,
			applied_at_utc TEXT NOT NULL,
			applied_by_user TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _yoyo_log (
			id TEXT PRIMARY KEY,
			migration_id TEXT NOT NULL,
			migration_hash TEXT NOT NULL,
			operation TEXT NOT NULL,
			username TEXT NOT NULL,
			hostname TEXT NOT NULL,
			comment TEXT,
			created_at_utc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _yoyo_version (
			version INTEGER PRIMARY KEY,
			installed_at_utc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS yoyo_lock (
			locked INTEGER PRIMARY KEY,
			ctime TEXT NOT NULL,
			pid INTEGER NOT NULL
		)`,
	}
}

func (dialect) HasNativeLock() bool { return false }

func (dialect) AcquireNativeLock(ctx context.Context, conn *sql.Conn, key string, timeout time.Duration) (bool, error) {
	return false, backend.ErrNotSupported
}

func (dialect) ReleaseNativeLock(ctx context.Context, conn *sql.Conn, key string) error {
	return backend.ErrNotSupported
}
