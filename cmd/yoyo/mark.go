package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/cliutil"
	"github.com/deicod/yoyo/internal/backend"
	"github.com/deicod/yoyo/internal/whoami"
)

// newMarkCmd records a migration as applied without running its steps
// (§4.2: "update the applied-set without executing steps").
func newMarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark <migration-id>",
		Short: "Record a migration as applied without executing its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return markOrUnmark(cmd, args[0], true)
		},
	}
}

// newUnmarkCmd removes a migration from the applied-set without running its
// rollback steps. Log rows from prior apply/rollback operations remain.
func newUnmarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unmark <migration-id>",
		Short: "Remove a migration from the applied-set without executing its rollback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return markOrUnmark(cmd, args[0], false)
		},
	}
}

func markOrUnmark(cmd *cobra.Command, id string, mark bool) error {
	cfg, err := resolveSettings(cmd)
	if err != nil {
		return cliutil.LoadError("resolve settings", err, "")
	}
	sess, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer sess.release(cmd.Context())

	m, ok := sess.graph.Get(id)
	if !ok {
		return cliutil.LoadError(fmt.Sprintf("unknown migration %q", id), nil, "Check the migration id against `yoyo list`.")
	}

	tx, err := sess.backend.Begin(cmd.Context(), true)
	if err != nil {
		return cliutil.ExecutionError("begin transaction", err, "")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(cmd.Context())
		}
	}()

	now := time.Now().UTC()
	who := whoami.Current()
	if mark {
		if err := sess.backend.InsertApplied(cmd.Context(), tx, backend.AppliedRow{
			MigrationID:   m.ID,
			MigrationHash: m.ContentHash,
			AppliedAtUTC:  now,
			AppliedBy:     who,
		}); err != nil {
			return cliutil.ExecutionError("mark "+id, err, "")
		}
		if err := sess.backend.AppendLog(cmd.Context(), tx, backend.LogRow{
			MigrationID:   m.ID,
			MigrationHash: m.ContentHash,
			Operation:     backend.OpMark,
			Username:      whoami.Username(),
			Hostname:      whoami.Hostname(),
			CreatedAtUTC:  now,
		}); err != nil {
			return cliutil.ExecutionError("log mark "+id, err, "")
		}
	} else {
		if err := sess.backend.DeleteApplied(cmd.Context(), tx, m.ID); err != nil {
			return cliutil.ExecutionError("unmark "+id, err, "")
		}
		if err := sess.backend.AppendLog(cmd.Context(), tx, backend.LogRow{
			MigrationID:   m.ID,
			MigrationHash: m.ContentHash,
			Operation:     backend.OpUnmark,
			Username:      whoami.Username(),
			Hostname:      whoami.Hostname(),
			CreatedAtUTC:  now,
		}); err != nil {
			return cliutil.ExecutionError("log unmark "+id, err, "")
		}
	}

	if err := tx.Commit(cmd.Context()); err != nil {
		return cliutil.ExecutionError("commit", err, "")
	}
	committed = true

	verb := "marked"
	if !mark {
		verb = "unmarked"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "yoyo: %s %s\n", verb, id)
	return nil
}
