package databasesql

import (
	"context"
	"database/sql"
	"fmt"
)

// sqlTx wraps a *sql.Tx, issuing raw SAVEPOINT statements when the dialect
// supports them. When it does not, Savepoint/Release/RollbackTo are no-ops
// and the engine degrades step-level ignore_errors to whole-migration
// rollback (§4.4).
type sqlTx struct {
	tx         *sql.Tx
	savepoints bool
}

func (t *sqlTx) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, sql, args...)
	return err
}

func (t *sqlTx) Savepoint(ctx context.Context, name string) error {
	if !t.savepoints {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf("SAVEPOINT %s", name))
	return err
}

func (t *sqlTx) Release(ctx context.Context, name string) error {
	if !t.savepoints {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf("RELEASE SAVEPOINT %s", name))
	return err
}

func (t *sqlTx) RollbackTo(ctx context.Context, name string) error {
	if !t.savepoints {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", name))
	return err
}

func (t *sqlTx) Commit(ctx context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) Rollback(ctx context.Context) error { return t.tx.Rollback() }
func (t *sqlTx) Conn() any                          { return t.tx }

// autocommitTx executes each statement directly against *sql.DB with no
// wrapping transaction, for non-transactional migrations (§4.3).
// Savepoint/Commit/Rollback are all no-ops: there is nothing to degrade to.
type autocommitTx struct {
	db *sql.DB
}

func (t *autocommitTx) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.db.ExecContext(ctx, sql, args...)
	return err
}

func (t *autocommitTx) Savepoint(ctx context.Context, name string) error  { return nil }
func (t *autocommitTx) Release(ctx context.Context, name string) error   { return nil }
func (t *autocommitTx) RollbackTo(ctx context.Context, name string) error { return nil }
func (t *autocommitTx) Commit(ctx context.Context) error                 { return nil }
func (t *autocommitTx) Rollback(ctx context.Context) error                { return nil }
func (t *autocommitTx) Conn() any                                         { return t.db }
