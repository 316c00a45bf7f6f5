package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/deicod/yoyo/internal/backend"
)

func TestEnsureSchemaIssuesBookkeepingDDL(t *testing.T) {
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("pgxmock.NewConn: %v", err)
	}
	defer mock.Close(context.Background())

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS _yoyo_migration").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS _yoyo_log").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS _yoyo_version").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS yoyo_lock").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	b := WithConn(mock, 42)
	if err := b.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBeginTransactionalWrapsInSavepoints(t *testing.T) {
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("pgxmock.NewConn: %v", err)
	}
	defer mock.Close(context.Background())

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec("SAVEPOINT").WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec("INSERT INTO widgets").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("RELEASE SAVEPOINT").WillReturnResult(pgxmock.NewResult("RELEASE", 0))
	mock.ExpectCommit()

	b := WithConn(mock, 42)
	tx, err := b.Begin(context.Background(), true)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Savepoint(context.Background(), "step_0"); err != nil {
		t.Fatalf("Savepoint: %v", err)
	}
	if err := tx.Exec(context.Background(), "INSERT INTO widgets (id) VALUES (1)"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if err := tx.Release(context.Background(), "step_0"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBeginNonTransactionalSkipsOuterTransaction(t *testing.T) {
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("pgxmock.NewConn: %v", err)
	}
	defer mock.Close(context.Background())

	mock.ExpectExec("CREATE INDEX CONCURRENTLY").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	b := WithConn(mock, 42)
	tx, err := b.Begin(context.Background(), false)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Exec(context.Background(), "CREATE INDEX CONCURRENTLY idx ON widgets (id)"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	// Commit/Rollback on an autocommit tx must not touch the connection.
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLockUsesAdvisoryLock(t *testing.T) {
	mock, err := pgxmock.NewConn(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("pgxmock.NewConn: %v", err)
	}
	defer mock.Close(context.Background())

	mock.ExpectExec("SELECT pg_advisory_lock($1)").WithArgs(int64(7)).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("SELECT pg_advisory_unlock($1)").WithArgs(int64(7)).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	b := WithConn(mock, 7)
	release, err := b.Lock(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertAppliedIsIdempotentOnConflict(t *testing.T) {
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("pgxmock.NewConn: %v", err)
	}
	defer mock.Close(context.Background())

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec("INSERT INTO _yoyo_migration").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	b := WithConn(mock, 1)
	tx, err := b.Begin(context.Background(), true)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	row := backend.AppliedRow{
		MigrationID:   "0001_init",
		MigrationHash: "abc123",
		AppliedAtUTC:  time.Now(),
		AppliedBy:     "ci@runner",
	}
	if err := b.InsertApplied(context.Background(), tx, row); err != nil {
		t.Fatalf("InsertApplied: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestQuoteIdentifierSanitizesReservedCharacters(t *testing.T) {
	b := New(1)
	got := b.QuoteIdentifier(`weird"name`)
	want := pgx.Identifier{`weird"name`}.Sanitize()
	if got != want {
		t.Fatalf("QuoteIdentifier = %q, want %q", got, want)
	}
}
