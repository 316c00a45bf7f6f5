package main

import (
	"context"
	"time"

	"github.com/deicod/yoyo/internal/backend"
)

// fakeBackend is an in-memory backend.Backend for exercising cmd/yoyo's
// command bodies without a real driver, mirroring internal/engine's
// fakeBackend test double.
type fakeBackend struct {
	applied map[string]struct{}
	log     []backend.LogRow
	recent  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{applied: map[string]struct{}{}}
}

func (b *fakeBackend) Connect(ctx context.Context, url string) error { return nil }
func (b *fakeBackend) Close(ctx context.Context) error               { return nil }
func (b *fakeBackend) SupportsSavepoints() bool                      { return true }

func (b *fakeBackend) Begin(ctx context.Context, transactional bool) (backend.Tx, error) {
	return &fakeTx{b: b}, nil
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

func (b *fakeBackend) RecentLog(ctx context.Context, n int) ([]string, error) {
	if n > len(b.recent) {
		n = len(b.recent)
	}
	return append([]string{}, b.recent[:n]...), nil
}

func (b *fakeBackend) Lock(ctx context.Context, timeout time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func (b *fakeBackend) BreakLock(ctx context.Context) error { return nil }

func (b *fakeBackend) SplitStatements(sql string) []string { return []string{sql} }

func (b *fakeBackend) QuoteIdentifier(name string) string { return `"` + name + `"` }

type fakeTx struct{ b *fakeBackend }

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) error { return nil }
func (t *fakeTx) Savepoint(ctx context.Context, name string) error       { return nil }
func (t *fakeTx) Release(ctx context.Context, name string) error         { return nil }
func (t *fakeTx) RollbackTo(ctx context.Context, name string) error      { return nil }
func (t *fakeTx) Commit(ctx context.Context) error                       { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error                     { return nil }
func (t *fakeTx) Conn() any                                              { return nil }
