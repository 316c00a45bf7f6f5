package main

import (
	"context"
	"testing"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/internal/engine"
	"github.com/deicod/yoyo/internal/graph"
	"github.com/deicod/yoyo/internal/settings"
	"github.com/deicod/yoyo/internal/tracing"
)

// testSession builds a session around a fakeBackend and the given
// migrations, bypassing openSession's connect/lock/load work entirely.
func testSession(t *testing.T, b *fakeBackend, migrations []*graph.Migration) *session {
	t.Helper()
	applied, err := b.AppliedSet(context.Background())
	if err != nil {
		t.Fatalf("applied set: %v", err)
	}
	g, err := graph.New(migrations, applied)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return &session{
		cfg:     settings.Settings{Batch: true},
		backend: b,
		graph:   g,
		engine:  engine.New(b, g, nil, tracing.NoopTracer{}),
		release: func(context.Context) error { return nil },
	}
}

func withStubbedSession(t *testing.T, sess *session) {
	t.Helper()
	original := openSession
	openSession = func(ctx context.Context, cfg settings.Settings) (*session, error) {
		return sess, nil
	}
	t.Cleanup(func() { openSession = original })

	originalResolve := resolveSettings
	resolveSettings = func(cmd *cobra.Command) (settings.Settings, error) {
		return sess.cfg, nil
	}
	t.Cleanup(func() { resolveSettings = originalResolve })
}
