// Package postgres implements the backend.Backend capability set for
// PostgreSQL using pgx v5, with pg_advisory_lock as the native advisory lock
// and real SAVEPOINT support (§4.4, §4.5). Grounded directly on the
// teacher's orm/migrate and orm/pg packages.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deicod/yoyo/internal/backend"
)

func init() {
	backend.Register("postgres", func(lockKey string) backend.Backend {
		return New(lockKeySeed(lockKey))
	})
}

// lockKeySeed derives a stable int64 pg_advisory_lock key from an arbitrary
// string, since the registry's Factory contract takes a string lockKey but
// Postgres advisory locks are keyed by bigint.
func lockKeySeed(lockKey string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(lockKey))
	return int64(h.Sum64())
}

// pgxConn abstracts the slice of *pgx.Conn this package drives, so tests can
// substitute pgxmock.PgxConnIface. Grounded on the teacher's TxStarter
// pattern in orm/migrate/migrate.go.
type pgxConn interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

var _ pgxConn = (*pgx.Conn)(nil)

// Backend is the PostgreSQL implementation of backend.Backend.
type Backend struct {
	conn    pgxConn
	lockKey int64
	pid     int
}

// New constructs a PostgreSQL backend. lockKey seeds the pg_advisory_lock
// key space; a deterministic project-specific value is recommended.
func New(lockKey int64) *Backend {
	return &Backend{lockKey: lockKey, pid: os.Getpid()}
}

// WithConn injects an already-open connection (or mock), bypassing Connect.
// Used by tests.
func WithConn(conn pgxConn, lockKey int64) *Backend {
	return &Backend{conn: conn, lockKey: lockKey, pid: os.Getpid()}
}

func (b *Backend) Connect(ctx context.Context, url string) error {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return fmt.Errorf("postgres: connect: %w", err)
	}
	b.conn = conn
	return nil
}

func (b *Backend) Close(ctx context.Context) error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close(ctx)
}

func (b *Backend) SupportsSavepoints() bool { return true }

func (b *Backend) Begin(ctx context.Context, transactional bool) (backend.Tx, error) {
	if !transactional {
		return &autocommitTx{conn: b.conn}, nil
	}
	tx, err := b.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin transaction: %w", err)
	}
	return &pgxTx{tx: tx, conn: b.conn}, nil
}

func (b *Backend) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS _yoyo_migration (
			migration_id TEXT PRIMARY KEY,
			migration_hash TEXT NOT NULL,
			applied_at_utc TIMESTAMPTZ NOT NULL,
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
			created_at_utc TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _yoyo_version (
			version INT PRIMARY KEY,
			installed_at_utc TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS yoyo_lock (
			locked INT PRIMARY KEY,
			ctime TIMESTAMPTZ NOT NULL,
			pid INT NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := b.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

func (b *Backend) AppliedSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := b.conn.Query(ctx, "SELECT migration_id FROM _yoyo_migration")
	if err != nil {
		return nil, fmt.Errorf("postgres: applied set: %w", err)
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan applied: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (b *Backend) InsertApplied(ctx context.Context, tx backend.Tx, row backend.AppliedRow) error {
	return tx.Exec(ctx,
		`INSERT INTO _yoyo_migration (migration_id, migration_hash, applied_at_utc, applied_by_user)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (migration_id) DO NOTHING`,
		row.MigrationID, row.MigrationHash, row.AppliedAtUTC.UTC(), row.AppliedBy)
}

func (b *Backend) DeleteApplied(ctx context.Context, tx backend.Tx, migrationID string) error {
	return tx.Exec(ctx, "DELETE FROM _yoyo_migration WHERE migration_id = $1", migrationID)
}

func (b *Backend) AppendLog(ctx context.Context, tx backend.Tx, row backend.LogRow) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	return tx.Exec(ctx,
		`INSERT INTO _yoyo_log (id, migration_id, migration_hash, operation, username, hostname, comment, created_at_utc)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.ID, row.MigrationID, row.MigrationHash, string(row.Operation), row.Username, row.Hostname, row.Comment, row.CreatedAtUTC.UTC())
}

func (b *Backend) RecentLog(ctx context.Context, n int) ([]string, error) {
	rows, err := b.conn.Query(ctx,
		"SELECT migration_id FROM _yoyo_log WHERE operation = 'apply' ORDER BY created_at_utc DESC LIMIT $1", n)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent log: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan recent log: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (b *Backend) Lock(ctx context.Context, timeout time.Duration) (func(context.Context) error, error) {
	lockCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if _, err := b.conn.Exec(lockCtx, "SELECT pg_advisory_lock($1)", b.lockKey); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			holder, _ := b.currentHolderPID(ctx)
			return nil, backend.ErrLockTimeout{Holder: backend.LockHolder{PID: holder}}
		}
		return nil, fmt.Errorf("postgres: acquire lock: %w", err)
	}

	return func(releaseCtx context.Context) error {
		_, err := b.conn.Exec(releaseCtx, "SELECT pg_advisory_unlock($1)", b.lockKey)
		return err
	}, nil
}

func (b *Backend) currentHolderPID(ctx context.Context) (int, error) {
	var pid int
	row := b.conn.QueryRow(ctx,
		`SELECT pid FROM pg_locks WHERE locktype = 'advisory' AND objid = $1 LIMIT 1`, b.lockKey)
	err := row.Scan(&pid)
	return pid, err
}

func (b *Backend) BreakLock(ctx context.Context) error {
	rows, err := b.conn.Query(ctx,
		`SELECT pid FROM pg_locks WHERE locktype = 'advisory' AND objid = $1`, b.lockKey)
	if err != nil {
		return fmt.Errorf("postgres: break-lock: list holders: %w", err)
	}
	var pids []int
	for rows.Next() {
		var pid int
		if err := rows.Scan(&pid); err != nil {
			rows.Close()
			return fmt.Errorf("postgres: break-lock: scan holder: %w", err)
		}
		pids = append(pids, pid)
	}
	rows.Close()
	for _, pid := range pids {
		if _, err := b.conn.Exec(ctx, "SELECT pg_terminate_backend($1)", pid); err != nil {
			return fmt.Errorf("postgres: break-lock: terminate %d: %w", pid, err)
		}
	}
	return nil
}

func (b *Backend) SplitStatements(sql string) []string {
	// pgx accepts multi-statement simple-protocol strings; the loader
	// already splits per §4.1, so this is a pass-through for single
	// statements supplied directly by a caller.
	return []string{sql}
}

func (b *Backend) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func diagnoseExecError(path, sql string, execErr error) error {
	var pgErr *pgconn.PgError
	if errors.As(execErr, &pgErr) {
		return fmt.Errorf("%s: %s (%s): %w", path, pgErr.Message, pgErr.Code, execErr)
	}
	return fmt.Errorf("%s: %w", path, execErr)
}
