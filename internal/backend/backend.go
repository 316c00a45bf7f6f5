// Package backend defines the capability set a concrete DBMS driver must
// implement so the execution engine can drive heterogeneous databases
// through one interface (§4.4).
package backend

import (
	"context"
	"errors"
	"time"
)

// AppliedRow is one row of the _yoyo_migration bookkeeping table.
type AppliedRow struct {
	MigrationID   string
	MigrationHash string
	AppliedAtUTC  time.Time
	AppliedBy     string
}

// LogOperation enumerates the operations recorded in _yoyo_log.
type LogOperation string

const (
	OpApply    LogOperation = "apply"
	OpRollback LogOperation = "rollback"
	OpMark     LogOperation = "mark"
	OpUnmark   LogOperation = "unmark"
)

// LogRow is one row of the append-only _yoyo_log table.
type LogRow struct {
	ID            string
	MigrationID   string
	MigrationHash string
	Operation     LogOperation
	Username      string
	Hostname      string
	Comment       string
	CreatedAtUTC  time.Time
}

// LockHolder describes whoever currently holds the cross-process lock, for
// lock-timeout error reporting.
type LockHolder struct {
	PID   int
	CTime time.Time
}

// ErrLockTimeout is returned by Backend.Lock when the timeout elapses before
// the lock could be acquired.
type ErrLockTimeout struct {
	Holder LockHolder
}

func (e ErrLockTimeout) Error() string {
	return "backend: lock timeout"
}

// ErrNotSupported is returned by capability-degraded backends (e.g.
// savepoints on a DBMS that lacks them) to signal a documented no-op.
var ErrNotSupported = errors.New("backend: operation not supported by this driver")

// Tx is a live, in-progress migration transaction (or a non-transactional
// pseudo-transaction when the migration disables wrapping).
type Tx interface {
	// Exec runs a single SQL statement within the transaction.
	Exec(ctx context.Context, sql string, args ...any) error
	// Savepoint establishes a named savepoint. No-op on backends without
	// savepoint support (ErrNotSupported is never returned; callers check
	// Backend.SupportsSavepoints instead).
	Savepoint(ctx context.Context, name string) error
	// Release drops a savepoint after its work succeeded.
	Release(ctx context.Context, name string) error
	// RollbackTo reverts to a savepoint after its work failed.
	RollbackTo(ctx context.Context, name string) error
	// Commit commits the outer transaction.
	Commit(ctx context.Context) error
	// Rollback aborts the outer transaction.
	Rollback(ctx context.Context) error
	// Conn returns the live connection handle passed to code-script step
	// callables (opaque to the core, §3).
	Conn() any
}

// Backend encapsulates per-DBMS variance: connecting, transaction and
// savepoint control, bookkeeping DDL/DML, locking, and statement dispatch.
type Backend interface {
	// Connect establishes a live connection with autocommit off by default.
	Connect(ctx context.Context, url string) error
	// Close releases the connection.
	Close(ctx context.Context) error

	// SupportsSavepoints reports whether Tx.Savepoint/Release/RollbackTo do
	// real work. When false, the engine degrades step-level ignore_errors to
	// whole-migration rollback (§4.4).
	SupportsSavepoints() bool

	// Begin starts a migration-scoped transaction. When transactional is
	// false, the returned Tx executes each statement autocommitted and
	// Commit/Rollback are no-ops.
	Begin(ctx context.Context, transactional bool) (Tx, error)

	// EnsureSchema idempotently creates the four bookkeeping tables and
	// migrates a legacy schema forward using the version row.
	EnsureSchema(ctx context.Context) error

	// AppliedSet returns every migration id currently recorded as applied.
	AppliedSet(ctx context.Context) (map[string]struct{}, error)
	// InsertApplied records a migration as applied. A no-op if already
	// present (§4.3 idempotence).
	InsertApplied(ctx context.Context, tx Tx, row AppliedRow) error
	// DeleteApplied removes an applied record. A no-op if absent.
	DeleteApplied(ctx context.Context, tx Tx, migrationID string) error
	// AppendLog appends one row to the append-only log.
	AppendLog(ctx context.Context, tx Tx, row LogRow) error
	// RecentLog returns the n most recently applied migration ids, most
	// recent first, reading from the log rather than the graph (used by
	// `develop`).
	RecentLog(ctx context.Context, n int) ([]string, error)

	// Lock blocks, with an optional timeout, until it owns the cross-process
	// lock, and returns a release function safe to call on every exit path.
	Lock(ctx context.Context, timeout time.Duration) (release func(context.Context) error, err error)
	// BreakLock forcibly clears the cross-process lock regardless of holder,
	// implementing the `break-lock` administrative command. Insert-sentinel
	// backends delete the lock row; postgres terminates the sessions it finds
	// holding the advisory lock; for other native-lock backends it is a no-op.
	BreakLock(ctx context.Context) error

	// SplitStatements splits a multi-statement SQL string for drivers that
	// cannot execute several statements in one call. Backends whose driver
	// accepts multi-statement strings may return the input unchanged.
	SplitStatements(sql string) []string
	// QuoteIdentifier quotes a SQL identifier per this DBMS's rules.
	QuoteIdentifier(name string) string
}
