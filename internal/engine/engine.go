// Package engine drives a graph.Plan to completion against a backend.Backend:
// per-migration transactions, per-step savepoints, the ignore_errors policy,
// bookkeeping writes, and the post-apply hook (§4.3). Grounded on the
// teacher's orm/migrate Apply/Rollback (explicit BeginTx/committed-flag/
// deferred-rollback pattern), generalized from one flat statement list into
// arbitrary nested step groups.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deicod/yoyo/internal/backend"
	"github.com/deicod/yoyo/internal/graph"
	"github.com/deicod/yoyo/internal/tracing"
	"github.com/deicod/yoyo/internal/whoami"
)

// StepFailure records an unhandled step error that aborted a plan.
type StepFailure struct {
	MigrationID string
	Partial     bool   // true when the migration was non-transactional
	Statement   string // the failing SQL statement, truncated (§7); empty for code-script steps
	Err         error
}

func (f *StepFailure) Error() string {
	stmt := ""
	if f.Statement != "" {
		stmt = fmt.Sprintf(" (statement: %s)", truncate(f.Statement, 200))
	}
	if f.Partial {
		return fmt.Sprintf("engine: %s: step failed, non-transactional migration left partially applied: %v%s", f.MigrationID, f.Err, stmt)
	}
	return fmt.Sprintf("engine: %s: step failed: %v%s", f.MigrationID, f.Err, stmt)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (f *StepFailure) Unwrap() error { return f.Err }

// Result summarizes the outcome of running a plan.
type Result struct {
	Direction     graph.Direction
	Completed     []string // migration ids fully committed, in execution order
	IgnoredErrors []error  // step failures swallowed by ignore_errors
	PostApplyRan  bool
}

// Engine runs plans against one backend and graph. PostApply, when set, runs
// after a successful Apply plan (§4.3); it is never a graph vertex, per
// spec.md's rule that post-apply hooks are not part of the dependency graph.
type Engine struct {
	Backend   backend.Backend
	Graph     *graph.Graph
	PostApply *graph.Migration
	Tracer    tracing.Tracer
}

// New constructs an Engine. A nil tracer is replaced with tracing.NoopTracer.
func New(b backend.Backend, g *graph.Graph, postApply *graph.Migration, tracer tracing.Tracer) *Engine {
	if tracer == nil {
		tracer = tracing.NoopTracer{}
	}
	return &Engine{Backend: b, Graph: g, PostApply: postApply, Tracer: tracer}
}

// Run executes plan in order, aborting on the first unhandled step failure.
// On success for an Apply plan, it also runs e.PostApply (§4.3), if set.
func (e *Engine) Run(ctx context.Context, plan graph.Plan) (result Result, err error) {
	ctx, span := e.Tracer.Start(ctx, "yoyo.engine.run",
		tracing.Attribute{Key: "yoyo.direction", Value: directionLabel(plan.Direction)},
		tracing.Attribute{Key: "yoyo.migration_count", Value: len(plan.Migrations)})
	defer func() { span.End(err) }()

	result = Result{Direction: plan.Direction}

	for _, id := range plan.Migrations {
		m, ok := e.Graph.Get(id)
		if !ok || m.Ghost {
			err = fmt.Errorf("engine: %s: migration not found in graph", id)
			return result, err
		}

		var ignored []error
		ignored, err = e.runMigration(ctx, m, plan.Direction)
		result.IgnoredErrors = append(result.IgnoredErrors, ignored...)
		if err != nil {
			return result, err
		}
		result.Completed = append(result.Completed, id)
	}

	if plan.Direction == graph.Apply && e.PostApply != nil {
		if _, hookErr := e.runPostApply(ctx, e.PostApply); hookErr != nil {
			err = fmt.Errorf("engine: post-apply hook: %w", hookErr)
			return result, err
		}
		result.PostApplyRan = true
	}

	return result, nil
}

// runMigration executes one migration's steps under a migration-scoped
// transaction (or autocommit, when non-transactional) and writes its
// bookkeeping row on success.
func (e *Engine) runMigration(ctx context.Context, m *graph.Migration, dir graph.Direction) (ignored []error, err error) {
	ctx, span := e.Tracer.Start(ctx, "yoyo.engine.migration",
		tracing.Attribute{Key: "yoyo.migration_id", Value: m.ID},
		tracing.Attribute{Key: "yoyo.transactional", Value: m.Transactional})
	defer func() { span.End(err) }()

	tx, err := e.Backend.Begin(ctx, m.Transactional)
	if err != nil {
		return nil, fmt.Errorf("engine: %s: begin: %w", m.ID, err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	counter := &savepointCounter{}
	ignored, failure := e.runSteps(ctx, tx, m.Steps, dir, counter)
	if failure != nil {
		statement := failingStatement(failure)
		if ctx.Err() != nil {
			failure = ctx.Err()
		}
		stepErr := &StepFailure{MigrationID: m.ID, Partial: !m.Transactional, Statement: statement, Err: failure}
		e.logFailure(ctx, m, dir, stepErr)
		return ignored, stepErr
	}

	if err := e.writeBookkeeping(ctx, tx, m, dir); err != nil {
		return ignored, fmt.Errorf("engine: %s: bookkeeping: %w", m.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ignored, fmt.Errorf("engine: %s: commit: %w", m.ID, err)
	}
	committed = true
	return ignored, nil
}

// runPostApply executes a post-apply hook's steps in Apply direction. No
// bookkeeping row is written regardless of outcome (§4.3).
func (e *Engine) runPostApply(ctx context.Context, m *graph.Migration) (ignored []error, err error) {
	ctx, span := e.Tracer.Start(ctx, "yoyo.engine.post_apply")
	defer func() { span.End(err) }()

	tx, err := e.Backend.Begin(ctx, m.Transactional)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	counter := &savepointCounter{}
	ignored, failure := e.runSteps(ctx, tx, m.Steps, graph.Apply, counter)
	if failure != nil {
		return ignored, &StepFailure{MigrationID: graph.PostApplyID, Partial: !m.Transactional, Statement: failingStatement(failure), Err: failure}
	}
	if err := tx.Commit(ctx); err != nil {
		return ignored, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return ignored, nil
}

// savepointCounter hands out monotonically increasing savepoint names (§4.3).
type savepointCounter struct{ n int }

func (c *savepointCounter) next() string {
	c.n++
	return fmt.Sprintf("yoyo_sp_%d", c.n)
}

// runSteps executes one ordered list of steps (a migration's top level, or a
// group's nested list) sharing the caller's savepoint scope. It returns
// swallowed (ignore_errors) failures plus the first unhandled failure, if
// any, which must abort the enclosing migration.
func (e *Engine) runSteps(ctx context.Context, tx backend.Tx, steps []graph.Step, dir graph.Direction, counter *savepointCounter) (ignored []error, failure error) {
	savepoints := e.Backend.SupportsSavepoints()

	for _, step := range steps {
		if ctx.Err() != nil {
			return ignored, ctx.Err()
		}

		name := counter.next()
		if savepoints {
			if err := tx.Savepoint(ctx, name); err != nil {
				return ignored, fmt.Errorf("savepoint %s: %w", name, err)
			}
		}

		var stepErr error
		if step.IsGroup() {
			var groupIgnored []error
			groupIgnored, stepErr = e.runSteps(ctx, tx, step.Group, dir, counter)
			ignored = append(ignored, groupIgnored...)
		} else {
			stepErr = e.runLeaf(ctx, tx, step, dir)
		}

		if stepErr == nil {
			if savepoints {
				if err := tx.Release(ctx, name); err != nil {
					return ignored, fmt.Errorf("release savepoint %s: %w", name, err)
				}
			}
			continue
		}

		if step.IgnoreErrors.Covers(dir) {
			if savepoints {
				if err := tx.RollbackTo(ctx, name); err != nil {
					return ignored, fmt.Errorf("rollback to savepoint %s: %w", name, err)
				}
			}
			ignored = append(ignored, stepErr)
			continue
		}

		if savepoints {
			_ = tx.RollbackTo(ctx, name)
		}
		return ignored, stepErr
	}

	return ignored, nil
}

// runLeaf executes one non-group step's payload for the given direction.
func (e *Engine) runLeaf(ctx context.Context, tx backend.Tx, step graph.Step, dir graph.Direction) error {
	payload := step.Apply
	if dir == graph.Rollback {
		payload = step.Rollback
	}
	if payload.IsZero() {
		return nil
	}
	if payload.Func != nil {
		if err := payload.Func(ctx, tx.Conn()); err != nil {
			return &leafError{Err: err}
		}
		return nil
	}
	if err := tx.Exec(ctx, payload.SQL); err != nil {
		return &leafError{Statement: payload.SQL, Err: err}
	}
	return nil
}

// leafError wraps a failing step's error with the SQL statement that
// produced it (empty for code-script steps), so callers up the stack can
// report it without threading an extra return value through runSteps (§7).
type leafError struct {
	Statement string
	Err       error
}

func (e *leafError) Error() string { return e.Err.Error() }
func (e *leafError) Unwrap() error { return e.Err }

// failingStatement extracts the SQL text from a failure returned by
// runSteps, if any.
func failingStatement(err error) string {
	var le *leafError
	if errors.As(err, &le) {
		return le.Statement
	}
	return ""
}

// writeBookkeeping records the applied/log row for a completed migration
// (apply: insert + log "apply"; rollback: delete + log "rollback"), sharing
// the migration's transaction (§4.3).
func (e *Engine) writeBookkeeping(ctx context.Context, tx backend.Tx, m *graph.Migration, dir graph.Direction) error {
	who := whoami.Current()
	now := time.Now().UTC()

	switch dir {
	case graph.Apply:
		if err := e.Backend.InsertApplied(ctx, tx, backend.AppliedRow{
			MigrationID:   m.ID,
			MigrationHash: m.ContentHash,
			AppliedAtUTC:  now,
			AppliedBy:     who,
		}); err != nil {
			return err
		}
		return e.Backend.AppendLog(ctx, tx, backend.LogRow{
			MigrationID:   m.ID,
			MigrationHash: m.ContentHash,
			Operation:     backend.OpApply,
			Username:      whoami.Username(),
			Hostname:      whoami.Hostname(),
			CreatedAtUTC:  now,
		})
	case graph.Rollback:
		if err := e.Backend.DeleteApplied(ctx, tx, m.ID); err != nil {
			return err
		}
		return e.Backend.AppendLog(ctx, tx, backend.LogRow{
			MigrationID:   m.ID,
			MigrationHash: m.ContentHash,
			Operation:     backend.OpRollback,
			Username:      whoami.Username(),
			Hostname:      whoami.Hostname(),
			CreatedAtUTC:  now,
		})
	default:
		return errors.New("engine: unknown direction")
	}
}

// logFailure records an unhandled step failure in a fresh autocommitted
// transaction, since the migration's own transaction is being rolled back
// and cannot carry the diagnostic row with it. Best-effort: a logging
// failure here must not mask the original step failure.
func (e *Engine) logFailure(ctx context.Context, m *graph.Migration, dir graph.Direction, failErr error) {
	tx, err := e.Backend.Begin(ctx, false)
	if err != nil {
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	op := backend.OpApply
	if dir == graph.Rollback {
		op = backend.OpRollback
	}

	_ = e.Backend.AppendLog(ctx, tx, backend.LogRow{
		MigrationID:   m.ID,
		MigrationHash: m.ContentHash,
		Operation:     op,
		Username:      whoami.Username(),
		Hostname:      whoami.Hostname(),
		Comment:       "failed: " + failErr.Error(),
		CreatedAtUTC:  time.Now().UTC(),
	})
	_ = tx.Commit(ctx)
}

func directionLabel(dir graph.Direction) string {
	if dir == graph.Rollback {
		return "rollback"
	}
	return "apply"
}
