package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/deicod/yoyo/cliutil"
	"github.com/deicod/yoyo/internal/backend"
	"github.com/deicod/yoyo/internal/engine"
	"github.com/deicod/yoyo/internal/graph"
	"github.com/deicod/yoyo/internal/loader"
	"github.com/deicod/yoyo/internal/settings"
	"github.com/deicod/yoyo/internal/tracing"

	// Imported for their backend.Register init() side effects only (§9
	// "registration of backends by URL scheme" registry pattern); cmd/yoyo
	// never references a concrete driver type.
	_ "github.com/deicod/yoyo/internal/backend/mysql"
	_ "github.com/deicod/yoyo/internal/backend/postgres"
	_ "github.com/deicod/yoyo/internal/backend/redshift"
	_ "github.com/deicod/yoyo/internal/backend/sqlite"
)

// session holds everything a command needs once settings are resolved and
// the database connection is live: the backend, the loaded graph, and an
// engine ready to run plans. release must be deferred by the caller.
type session struct {
	cfg     settings.Settings
	backend backend.Backend
	graph   *graph.Graph
	engine  *engine.Engine
	release func(context.Context) error
}

// openSession connects, acquires the cross-process lock, ensures the
// bookkeeping schema, and loads+graphs every configured source. Commands
// that don't touch the database (new, init) skip this, and so does
// break-lock, which must not wait for the lock. A package var, not a
// plain func, so tests can substitute a fake session the way the teacher's
// migrate.go swaps openMigrationConn/applyMigrations/planMigrations.
var openSession = func(ctx context.Context, cfg settings.Settings) (*session, error) {
	b, err := backend.New(cfg.DatabaseURL, cfg.LockKey)
	if err != nil {
		var unknown backend.ErrUnknownScheme
		if errors.As(err, &unknown) {
			return nil, cliutil.LoadError(fmt.Sprintf("unsupported database scheme %q", unknown.Scheme), err,
				"Use one of: postgres, mysql, sqlite, redshift.")
		}
		return nil, cliutil.LoadError("parse --database", err, "Check the connection URL syntax (scheme[+driver]://user:pass@host/db).")
	}

	if err := b.Connect(ctx, cfg.DatabaseURL); err != nil {
		return nil, cliutil.ExecutionError(fmt.Sprintf("connect to %s", redactURL(cfg.DatabaseURL)), err,
			"Verify the database is reachable and credentials are correct.")
	}

	release, err := b.Lock(ctx, cfg.LockTimeout)
	if err != nil {
		var timeout backend.ErrLockTimeout
		if errors.As(err, &timeout) {
			_ = b.Close(ctx)
			return nil, cliutil.LockError(fmt.Sprintf("lock timeout (held by pid %d since %s)", timeout.Holder.PID, timeout.Holder.CTime),
				err, "Wait for the other process to finish, or run `yoyo break-lock` if it is dead.")
		}
		_ = b.Close(ctx)
		return nil, cliutil.LockError("acquire migration lock", err, "")
	}

	if err := b.EnsureSchema(ctx); err != nil {
		_ = release(ctx)
		_ = b.Close(ctx)
		return nil, cliutil.ExecutionError("ensure bookkeeping schema", err, "")
	}

	result, err := loader.Load(ctx, os.DirFS("."), cfg.Sources, loader.Options{})
	if err != nil {
		_ = release(ctx)
		_ = b.Close(ctx)
		return nil, cliutil.LoadError("load migration sources", err, "Check source paths/globs and SQL directive syntax.")
	}

	applied, err := b.AppliedSet(ctx)
	if err != nil {
		_ = release(ctx)
		_ = b.Close(ctx)
		return nil, cliutil.ExecutionError("read applied-migrations set", err, "")
	}

	g, err := graph.New(result.Migrations, applied)
	if err != nil {
		_ = release(ctx)
		_ = b.Close(ctx)
		return nil, cliutil.LoadError("build migration graph", err, describeGraphError(err))
	}

	postApply, err := result.SinglePostApply()
	if err != nil {
		_ = release(ctx)
		_ = b.Close(ctx)
		return nil, cliutil.LoadError("resolve post-apply hook", err, "")
	}

	e := engine.New(b, g, postApply, tracing.NewOTelTracer(nil, ""))

	return &session{
		cfg:     cfg,
		backend: b,
		graph:   g,
		engine:  e,
		release: func(closeCtx context.Context) error {
			releaseErr := release(closeCtx)
			closeErr := b.Close(closeCtx)
			if releaseErr != nil {
				return releaseErr
			}
			return closeErr
		},
	}, nil
}

func describeGraphError(err error) string {
	var dup graph.ErrDuplicateID
	if errors.As(err, &dup) {
		return "Rename one of the colliding migration files to a unique id."
	}
	var unknownDep graph.ErrUnknownDependency
	if errors.As(err, &unknownDep) {
		return "Fix the `-- depends:` directive or add the missing migration file."
	}
	var cycle graph.ErrCycle
	if errors.As(err, &cycle) {
		return "Break the dependency cycle shown above."
	}
	return ""
}

// redactURL strips any password from a connection URL for safe display
// (§7: "Connection errors: reported with the URL (password redacted)").
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "REDACTED")
		}
	}
	return u.String()
}
