package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/deicod/yoyo/internal/backend"
	"github.com/deicod/yoyo/internal/graph"
)

func TestMarkThenUnmarkRestoresAppliedSet(t *testing.T) {
	m1 := graph.NewMigration("0001_init")

	b := newFakeBackend()
	sess := testSession(t, b, []*graph.Migration{m1})
	withStubbedSession(t, sess)

	markCmd := newMarkCmd()
	out := &bytes.Buffer{}
	markCmd.SetOut(out)
	if err := markCmd.RunE(markCmd, []string{"0001_init"}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if _, ok := b.applied["0001_init"]; !ok {
		t.Fatalf("expected 0001_init marked applied")
	}
	if len(b.log) != 1 || b.log[0].Operation != backend.OpMark {
		t.Fatalf("expected one mark log row, got %v", b.log)
	}

	unmarkCmd := newUnmarkCmd()
	unmarkCmd.SetOut(out)
	if err := unmarkCmd.RunE(unmarkCmd, []string{"0001_init"}); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if _, ok := b.applied["0001_init"]; ok {
		t.Fatalf("expected 0001_init no longer applied")
	}
	if len(b.log) != 2 || b.log[1].Operation != backend.OpUnmark {
		t.Fatalf("expected mark+unmark log rows, got %v", b.log)
	}
}

func TestMarkUnknownMigrationFails(t *testing.T) {
	b := newFakeBackend()
	sess := testSession(t, b, nil)
	withStubbedSession(t, sess)

	cmd := newMarkCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	err := cmd.RunE(cmd, []string{"does-not-exist"})
	if err == nil {
		t.Fatal("expected error for unknown migration")
	}
	if !strings.Contains(err.Error(), "unknown migration") {
		t.Fatalf("expected unknown migration error, got %v", err)
	}
}
