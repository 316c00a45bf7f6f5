// Package redshift implements the backend.Backend capability set for Amazon
// Redshift using lib/pq. Redshift speaks the Postgres wire protocol but has
// no pg_advisory_lock and no savepoint support, so it falls back to the
// insert-sentinel lock protocol and no-op savepoints (§4.4 degradation).
package redshift

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"github.com/deicod/yoyo/internal/backend"
	"github.com/deicod/yoyo/internal/backend/databasesql"
)

func init() {
	backend.Register("redshift", func(lockKey string) backend.Backend { return New(lockKey) })
}

// New constructs a Redshift backend. Redshift has no native advisory lock,
// so it uses the insert-sentinel lock, which does not use lockKey.
func New(lockKey string) backend.Backend {
	return databasesql.New("postgres", dialect{}, lockKey)
}

type dialect struct{}

func (dialect) Name() string { return "redshift" }

func (d dialect) Placeholder(i int) string {
	return "$" + strconv.Itoa(i)
}

func (dialect) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

func (dialect) SupportsSavepoints() bool { return false }

func (dialect) BookkeepingDDL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS _yoyo_migration (
			migration_id VARCHAR(255) PRIMARY KEY,
			migration_hash VARCHAR(64) NOT NULL,
			applied_at_utc TIMESTAMP NOT NULL,
			applied_by_user VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _yoyo_log (
			id VARCHAR(36) PRIMARY KEY,
			migration_id VARCHAR(255) NOT NULL,
			migration_hash VARCHAR(64) NOT NULL,
			operation VARCHAR(16) NOT NULL,
			username VARCHAR(255) NOT NULL,
			hostname VARCHAR(255) NOT NULL,
			comment VARCHAR(4096),
			created_at_utc TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _yoyo_version (
			version INT PRIMARY KEY,
			installed_at_utc TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS yoyo_lock (
			locked INT PRIMARY KEY,
			ctime TIMESTAMP NOT NULL,
			pid INT NOT NULL
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
