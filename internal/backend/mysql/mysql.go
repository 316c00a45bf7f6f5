// Package mysql implements the backend.Backend capability set for MySQL
// using go-sql-driver/mysql, with GET_LOCK/RELEASE_LOCK as the native
// advisory lock (§4.5).
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/deicod/yoyo/internal/backend"
	"github.com/deicod/yoyo/internal/backend/databasesql"
)

func init() {
	backend.Register("mysql", func(lockKey string) backend.Backend { return New(lockKey) })
}

// New constructs a MySQL backend. lockKey seeds the GET_LOCK name.
func New(lockKey string) backend.Backend {
	return databasesql.New("mysql", dialect{}, lockKey)
}

type dialect struct{}

func (dialect) Name() string { return "mysql" }

func (dialect) Placeholder(i int) string { return "?" }

func (dialect) QuoteIdentifier(name string) string {
	return "`" + name + "`"
}

func (dialect) SupportsSavepoints() bool { return true }

func (dialect) BookkeepingDDL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS _yoyo_migration (
			migration_id VARCHAR(255) PRIMARY KEY,
			migration_hash VARCHAR(64) NOT NULL,
			applied_at_utc DATETIME NOT NULL,
			applied_by_user VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _yoyo_log (
			id VARCHAR(36) PRIMARY KEY,
			migration_id VARCHAR(255) NOT NULL,
			migration_hash VARCHAR(64) NOT NULL,
			operation VARCHAR(16) NOT NULL,
			username VARCHAR(255) NOT NULL,
			hostname VARCHAR(255) NOT NULL,
			comment TEXT,
			created_at_utc DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _yoyo_version (
			version INT PRIMARY KEY,
			installed_at_utc DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS yoyo_lock (
			locked INT PRIMARY KEY,
			ctime DATETIME NOT NULL,
			pid INT NOT NULL
		)`,
	}
}

func (dialect) HasNativeLock() bool { return true }

func (dialect) AcquireNativeLock(ctx context.Context, conn *sql.Conn, key string, timeout time.Duration) (bool, error) {
	seconds := int(timeout / time.Second)
	if timeout <= 0 {
		seconds = -1 // GET_LOCK: negative timeout means wait indefinitely
	}
	var result sql.NullInt64
	row := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", key, seconds)
	if err := row.Scan(&result); err != nil {
		return false, fmt.Errorf("mysql: GET_LOCK: %w", err)
	}
	return result.Valid && result.Int64 == 1, nil
}

func (dialect) ReleaseNativeLock(ctx context.Context, conn *sql.Conn, key string) error {
	_, err := conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", key)
	return err
}
