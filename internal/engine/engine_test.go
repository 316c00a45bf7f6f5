package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deicod/yoyo/internal/backend"
	"github.com/deicod/yoyo/internal/graph"
)

// fakeBackend is an in-memory backend.Backend used to exercise the engine's
// transaction/savepoint/bookkeeping orchestration without a real driver.
type fakeBackend struct {
	savepoints   bool
	applied      map[string]struct{}
	log          []backend.LogRow
	execLog      []string
	failExec     map[string]error // sql substring -> error to return once
	savepointLog []string
}

func newFakeBackend(savepoints bool) *fakeBackend {
	return &fakeBackend{savepoints: savepoints, applied: map[string]struct{}{}, failExec: map[string]error{}}
}

func (b *fakeBackend) Connect(ctx context.Context, url string) error { return nil }
func (b *fakeBackend) Close(ctx context.Context) error               { return nil }
func (b *fakeBackend) SupportsSavepoints() bool                      { return b.savepoints }

func (b *fakeBackend) Begin(ctx context.Context, transactional bool) (backend.Tx, error) {
	return &fakeTx{b: b, transactional: transactional}, nil
}

func (b *fakeBackend) EnsureSchema(ctx context.Context) error { return nil }

func (b *fakeBackend) AppliedSet(ctx context.Context) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for k := range b.applied {
		out[k] = struct{}{}
	}
	return out, nil
}

func (b *fakeBackend) InsertApplied(ctx context.Context, tx backend.Tx, row backend.AppliedRow) error {
	b.applied[row.MigrationID] = struct{}{}
	return nil
}

func (b *fakeBackend) DeleteApplied(ctx context.Context, tx backend.Tx, migrationID string) error {
	delete(b.applied, migrationID)
	return nil
}

func (b *fakeBackend) AppendLog(ctx context.Context, tx backend.Tx, row backend.LogRow) error {
	b.log = append(b.log, row)
	return nil
}

func (b *fakeBackend) RecentLog(ctx context.Context, n int) ([]string, error) { return nil, nil }

func (b *fakeBackend) Lock(ctx context.Context, timeout time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func (b *fakeBackend) BreakLock(ctx context.Context) error { return nil }

func (b *fakeBackend) SplitStatements(sql string) []string { return []string{sql} }

func (b *fakeBackend) QuoteIdentifier(name string) string { return `"` + name + `"` }

type fakeTx struct {
	b             *fakeBackend
	transactional bool
	rolledBack    bool
	committed     bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) error {
	t.b.execLog = append(t.b.execLog, sql)
	if err, ok := t.b.failExec[sql]; ok {
		delete(t.b.failExec, sql)
		return err
	}
	return nil
}

func (t *fakeTx) Savepoint(ctx context.Context, name string) error {
	if !t.transactional || !t.b.savepoints {
		return nil
	}
	t.b.savepointLog = append(t.b.savepointLog, "SAVEPOINT "+name)
	return nil
}

func (t *fakeTx) Release(ctx context.Context, name string) error {
	if !t.transactional || !t.b.savepoints {
		return nil
	}
	t.b.savepointLog = append(t.b.savepointLog, "RELEASE "+name)
	return nil
}

func (t *fakeTx) RollbackTo(ctx context.Context, name string) error {
	if !t.transactional || !t.b.savepoints {
		return nil
	}
	t.b.savepointLog = append(t.b.savepointLog, "ROLLBACK TO "+name)
	return nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

func (t *fakeTx) Conn() any { return t.b }

func sqlMigration(id string, stmts ...string) *graph.Migration {
	m := graph.NewMigration(id)
	m.ContentHash = "hash-" + id
	for _, s := range stmts {
		m.Steps = append(m.Steps, graph.Step{Apply: graph.Payload{SQL: s}, Rollback: graph.Payload{SQL: "undo " + s}})
	}
	return m
}

func TestRunAppliesMigrationsAndWritesBookkeeping(t *testing.T) {
	b := newFakeBackend(true)
	g, err := graph.New([]*graph.Migration{sqlMigration("0001", "create table a")}, map[string]struct{}{})
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	e := New(b, g, nil, nil)

	result, err := e.Run(context.Background(), graph.Plan{Direction: graph.Apply, Migrations: []string{"0001"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Completed) != 1 || result.Completed[0] != "0001" {
		t.Fatalf("Completed = %v", result.Completed)
	}
	if _, ok := b.applied["0001"]; !ok {
		t.Fatal("expected 0001 recorded applied")
	}
	if len(b.log) != 1 || b.log[0].Operation != backend.OpApply {
		t.Fatalf("log = %+v", b.log)
	}
}

func TestRunRollbackDeletesAppliedRow(t *testing.T) {
	b := newFakeBackend(true)
	b.applied["0001"] = struct{}{}
	g, err := graph.New([]*graph.Migration{sqlMigration("0001", "create table a")}, map[string]struct{}{"0001": {}})
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	e := New(b, g, nil, nil)

	_, err = e.Run(context.Background(), graph.Plan{Direction: graph.Rollback, Migrations: []string{"0001"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := b.applied["0001"]; ok {
		t.Fatal("expected 0001 no longer applied")
	}
	if len(b.log) != 1 || b.log[0].Operation != backend.OpRollback {
		t.Fatalf("log = %+v", b.log)
	}
}

func TestRunIgnoresStepErrorWhenPolicyCovers(t *testing.T) {
	b := newFakeBackend(true)
	b.failExec["bad statement"] = errors.New("syntax error")

	m := sqlMigration("0001")
	m.Steps = []graph.Step{
		{Apply: graph.Payload{SQL: "good statement"}},
		{Apply: graph.Payload{SQL: "bad statement"}, IgnoreErrors: graph.IgnoreApply},
	}
	g, err := graph.New([]*graph.Migration{m}, map[string]struct{}{})
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	e := New(b, g, nil, nil)

	result, err := e.Run(context.Background(), graph.Plan{Direction: graph.Apply, Migrations: []string{"0001"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.IgnoredErrors) != 1 {
		t.Fatalf("expected one ignored error, got %v", result.IgnoredErrors)
	}
	if _, ok := b.applied["0001"]; !ok {
		t.Fatal("migration with an ignored step error should still be recorded applied")
	}
}

func TestRunAbortsOnUnhandledStepError(t *testing.T) {
	b := newFakeBackend(true)
	b.failExec["bad statement"] = errors.New("syntax error")

	m := sqlMigration("0001")
	m.Steps = []graph.Step{{Apply: graph.Payload{SQL: "bad statement"}}}
	g, err := graph.New([]*graph.Migration{m}, map[string]struct{}{})
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	e := New(b, g, nil, nil)

	_, err = e.Run(context.Background(), graph.Plan{Direction: graph.Apply, Migrations: []string{"0001"}})
	if err == nil {
		t.Fatal("expected error")
	}
	var failure *StepFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *StepFailure, got %T: %v", err, err)
	}
	if failure.Partial {
		t.Fatal("transactional migration failure should not be marked partial")
	}
	if failure.Statement != "bad statement" {
		t.Fatalf("expected failure to carry the failing statement, got %q", failure.Statement)
	}
	if _, ok := b.applied["0001"]; ok {
		t.Fatal("migration should not be recorded applied after an unhandled failure")
	}
	if len(b.log) != 1 {
		t.Fatalf("expected one diagnostic log row from the failed attempt, got %d", len(b.log))
	}
}

func TestRunMarksPartialOnNonTransactionalFailure(t *testing.T) {
	b := newFakeBackend(true)
	b.failExec["bad statement"] = errors.New("syntax error")

	m := sqlMigration("0001")
	m.Transactional = false
	m.Steps = []graph.Step{{Apply: graph.Payload{SQL: "bad statement"}}}
	g, err := graph.New([]*graph.Migration{m}, map[string]struct{}{})
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	e := New(b, g, nil, nil)

	_, err = e.Run(context.Background(), graph.Plan{Direction: graph.Apply, Migrations: []string{"0001"}})
	var failure *StepFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *StepFailure, got %T: %v", err, err)
	}
	if !failure.Partial {
		t.Fatal("non-transactional migration failure should be marked partial")
	}
}

func TestRunExecutesGroupUnderSharedSavepoint(t *testing.T) {
	b := newFakeBackend(true)
	b.failExec["step b"] = errors.New("boom")

	m := sqlMigration("0001")
	m.Steps = []graph.Step{
		{
			IgnoreErrors: graph.IgnoreApply,
			Group: []graph.Step{
				{Apply: graph.Payload{SQL: "step a"}},
				{Apply: graph.Payload{SQL: "step b"}},
			},
		},
		{Apply: graph.Payload{SQL: "step c"}},
	}
	g, err := graph.New([]*graph.Migration{m}, map[string]struct{}{})
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	e := New(b, g, nil, nil)

	result, err := e.Run(context.Background(), graph.Plan{Direction: graph.Apply, Migrations: []string{"0001"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.IgnoredErrors) != 1 {
		t.Fatalf("expected the group's failure to be swallowed, got %v", result.IgnoredErrors)
	}
	found := false
	for _, s := range b.execLog {
		if s == "step c" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected execution to continue to the next top-level step after the group was swallowed")
	}
}

func TestRunExecutesPostApplyHookWithoutBookkeeping(t *testing.T) {
	b := newFakeBackend(true)
	m := sqlMigration("0001", "create table a")
	hook := sqlMigration(graph.PostApplyID, "analyze a")
	hook.IsPostApply = true

	g, err := graph.New([]*graph.Migration{m}, map[string]struct{}{})
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	e := New(b, g, hook, nil)

	result, err := e.Run(context.Background(), graph.Plan{Direction: graph.Apply, Migrations: []string{"0001"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.PostApplyRan {
		t.Fatal("expected post-apply hook to run")
	}
	if _, ok := b.applied[graph.PostApplyID]; ok {
		t.Fatal("post-apply hook must never be recorded in bookkeeping")
	}
	found := false
	for _, s := range b.execLog {
		if s == "analyze a" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected post-apply hook statement to execute")
	}
}

func TestRunDegradesToWholeMigrationRollbackWithoutSavepoints(t *testing.T) {
	b := newFakeBackend(false)
	b.failExec["bad statement"] = errors.New("boom")

	m := sqlMigration("0001")
	m.Steps = []graph.Step{
		{Apply: graph.Payload{SQL: "good statement"}},
		{Apply: graph.Payload{SQL: "bad statement"}},
	}
	g, err := graph.New([]*graph.Migration{m}, map[string]struct{}{})
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	e := New(b, g, nil, nil)

	_, err = e.Run(context.Background(), graph.Plan{Direction: graph.Apply, Migrations: []string{"0001"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(b.savepointLog) != 0 {
		t.Fatalf("expected no savepoint traffic on a backend without savepoint support, got %v", b.savepointLog)
	}
	if _, ok := b.applied["0001"]; ok {
		t.Fatal("migration should not be recorded applied")
	}
}
