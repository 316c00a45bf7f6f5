package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// pgxTx wraps a live pgx transaction, issuing real SAVEPOINT statements
// (§4.4). Grounded on the teacher's orm/migrate transaction wrapper, which
// drove the same pgx.Tx through a narrower ad hoc interface.
type pgxTx struct {
	tx   pgx.Tx
	conn pgxConn
}

func (t *pgxTx) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return diagnoseExecError("postgres: exec", sql, err)
	}
	return nil
}

func (t *pgxTx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *pgxTx) Release(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *pgxTx) RollbackTo(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *pgxTx) Conn() any {
	return t.conn
}

// autocommitTx runs each statement directly against the connection for
// non-transactional migrations (§4.4). Savepoints are no-ops: the engine
// only calls them when Backend.SupportsSavepoints is true and the migration
// is transactional, so this path is never exercised under savepoint control.
type autocommitTx struct {
	conn pgxConn
}

func (t *autocommitTx) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.conn.Exec(ctx, sql, args...)
	if err != nil {
		return diagnoseExecError("postgres: exec (autocommit)", sql, err)
	}
	return nil
}

func (t *autocommitTx) Savepoint(ctx context.Context, name string) error  { return nil }
func (t *autocommitTx) Release(ctx context.Context, name string) error    { return nil }
func (t *autocommitTx) RollbackTo(ctx context.Context, name string) error { return nil }
func (t *autocommitTx) Commit(ctx context.Context) error                  { return nil }
func (t *autocommitTx) Rollback(ctx context.Context) error                { return nil }
func (t *autocommitTx) Conn() any                                         { return t.conn }
