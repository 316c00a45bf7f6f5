package databasesql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deicod/yoyo/internal/backend"
	"github.com/deicod/yoyo/internal/lock"
)

// Backend implements backend.Backend over database/sql, parameterized by a
// Dialect. It is the shared base for the mysql, redshift, and generic
// ODBC/Oracle/Snowflake-shaped drivers (§4.4).
type Backend struct {
	driverName string
	dialect    Dialect
	db         *sql.DB

	lockConn   *sql.Conn // held open for the duration of a native advisory lock
	lockKey    string
	pid        int
}

// New constructs a Backend for driverName (as registered with database/sql)
// using the given dialect. lockKey seeds the native advisory lock name; the
// insert-sentinel lock used by dialects without one ignores it.
func New(driverName string, dialect Dialect, lockKey string) *Backend {
	return &Backend{driverName: driverName, dialect: dialect, lockKey: lockKey, pid: os.Getpid()}
}

// WithDB injects an already-open *sql.DB (or a sqlmock-backed one),
// bypassing Connect. Exists for tests only, mirroring the pgx backend's
// WithConn.
func WithDB(db *sql.DB, dialect Dialect, lockKey string) *Backend {
	return &Backend{dialect: dialect, db: db, lockKey: lockKey, pid: os.Getpid()}
}

func (b *Backend) Connect(ctx context.Context, url string) error {
	db, err := sql.Open(b.driverName, url)
	if err != nil {
		return fmt.Errorf("databasesql(%s): open: %w", b.dialect.Name(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("databasesql(%s): connect: %w", b.dialect.Name(), err)
	}
	b.db = db
	return nil
}

func (b *Backend) Close(ctx context.Context) error {
	if b.lockConn != nil {
		_ = b.lockConn.Close()
		b.lockConn = nil
	}
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Backend) SupportsSavepoints() bool { return b.dialect.SupportsSavepoints() }

func (b *Backend) Begin(ctx context.Context, transactional bool) (backend.Tx, error) {
	if !transactional {
		return &autocommitTx{db: b.db}, nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("databasesql(%s): begin: %w", b.dialect.Name(), err)
	}
	return &sqlTx{tx: tx, savepoints: b.dialect.SupportsSavepoints()}, nil
}

func (b *Backend) EnsureSchema(ctx context.Context) error {
	for _, stmt := range b.dialect.BookkeepingDDL() {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("databasesql(%s): ensure schema: %w", b.dialect.Name(), err)
		}
	}
	return nil
}

func (b *Backend) AppliedSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT migration_id FROM _yoyo_migration")
	if err != nil {
		return nil, fmt.Errorf("databasesql(%s): applied set: %w", b.dialect.Name(), err)
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("databasesql(%s): scan applied: %w", b.dialect.Name(), err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (b *Backend) InsertApplied(ctx context.Context, tx backend.Tx, row backend.AppliedRow) error {
	sql := fmt.Sprintf(
		"INSERT INTO _yoyo_migration (migration_id, migration_hash, applied_at_utc, applied_by_user) "+
			"SELECT %s, %s, %s, %s WHERE NOT EXISTS (SELECT 1 FROM _yoyo_migration WHERE migration_id = %s)",
		b.dialect.Placeholder(1), b.dialect.Placeholder(2), b.dialect.Placeholder(3), b.dialect.Placeholder(4), b.dialect.Placeholder(5),
	)
	return tx.Exec(ctx, sql, row.MigrationID, row.MigrationHash, row.AppliedAtUTC.UTC(), row.AppliedBy, row.MigrationID)
}

func (b *Backend) DeleteApplied(ctx context.Context, tx backend.Tx, migrationID string) error {
	sql := fmt.Sprintf("DELETE FROM _yoyo_migration WHERE migration_id = %s", b.dialect.Placeholder(1))
	return tx.Exec(ctx, sql, migrationID)
}

func (b *Backend) AppendLog(ctx context.Context, tx backend.Tx, row backend.LogRow) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	sql := fmt.Sprintf(
		"INSERT INTO _yoyo_log (id, migration_id, migration_hash, operation, username, hostname, comment, created_at_utc) "+
			"VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
		b.dialect.Placeholder(1), b.dialect.Placeholder(2), b.dialect.Placeholder(3), b.dialect.Placeholder(4),
		b.dialect.Placeholder(5), b.dialect.Placeholder(6), b.dialect.Placeholder(7), b.dialect.Placeholder(8),
	)
	return tx.Exec(ctx, sql, row.ID, row.MigrationID, row.MigrationHash, string(row.Operation), row.Username, row.Hostname, row.Comment, row.CreatedAtUTC.UTC())
}

func (b *Backend) RecentLog(ctx context.Context, n int) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT migration_id FROM _yoyo_log WHERE operation = 'apply' ORDER BY created_at_utc DESC")
	if err != nil {
		return nil, fmt.Errorf("databasesql(%s): recent log: %w", b.dialect.Name(), err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() && len(out) < n {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("databasesql(%s): scan recent log: %w", b.dialect.Name(), err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (b *Backend) Lock(ctx context.Context, timeout time.Duration) (func(context.Context) error, error) {
	if b.dialect.HasNativeLock() {
		conn, err := b.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("databasesql(%s): lock conn: %w", b.dialect.Name(), err)
		}
		ok, err := b.dialect.AcquireNativeLock(ctx, conn, b.lockKey, timeout)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("databasesql(%s): acquire lock: %w", b.dialect.Name(), err)
		}
		if !ok {
			conn.Close()
			return nil, backend.ErrLockTimeout{}
		}
		b.lockConn = conn
		return func(releaseCtx context.Context) error {
			err := b.dialect.ReleaseNativeLock(releaseCtx, conn, b.lockKey)
			conn.Close()
			b.lockConn = nil
			return err
		}, nil
	}

	store := &sentinelStore{db: b.db, dialect: b.dialect}
	release, err := lock.Acquire(ctx, store, b.pid, timeout)
	var timeoutErr lock.ErrTimeout
	if errors.As(err, &timeoutErr) {
		return nil, backend.ErrLockTimeout{Holder: backend.LockHolder{PID: timeoutErr.Holder.PID, CTime: timeoutErr.Holder.CTime}}
	}
	return release, err
}

func (b *Backend) BreakLock(ctx context.Context) error {
	if b.dialect.HasNativeLock() {
		// Native locks release automatically when their owning session ends;
		// there is no lock row to remove, so this is a no-op.
		return nil
	}
	store := &sentinelStore{db: b.db, dialect: b.dialect}
	return lock.Break(ctx, store)
}

func (b *Backend) SplitStatements(sql string) []string {
	// database/sql drivers in this pack (mysql, lib/pq) accept one
	// statement per Exec call; splitting is the loader's job upstream, so
	// this is a pass-through unless the caller hands us an unsplit blob.
	stmts := strings.Split(sql, ";")
	out := make([]string, 0, len(stmts))
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (b *Backend) QuoteIdentifier(name string) string { return b.dialect.QuoteIdentifier(name) }
