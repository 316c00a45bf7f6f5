package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/cliutil"
	"github.com/deicod/yoyo/internal/graph"
)

func newReapplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reapply",
		Short: "Roll back then re-apply every applied migration (or --revision and its applied descendants)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveSettings(cmd)
			if err != nil {
				return cliutil.LoadError("resolve settings", err, "")
			}
			sess, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer sess.release(cmd.Context())

			applied, err := sess.backend.AppliedSet(cmd.Context())
			if err != nil {
				return cliutil.ExecutionError("read applied-migrations set", err, "")
			}
			down, up, err := sess.graph.ReapplyPlan(applied, cfg.Revision)
			if err != nil {
				return cliutil.LoadError("build reapply plan", err, describeGraphError(err))
			}

			announcePlan(cmd, graph.Plan{Direction: graph.Rollback, Migrations: down.Migrations})
			if len(down.Migrations) == 0 {
				return nil
			}
			ok, err := confirm(cmd)
			if err != nil {
				return cliutil.WrapError("read confirmation", err, "", cliutil.ExitGeneric)
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "yoyo: aborted")
				return nil
			}

			downResult, err := sess.engine.Run(cmd.Context(), down)
			reportResult(cmd, downResult)
			if err != nil {
				return describeExecutionError(err)
			}

			upResult, err := sess.engine.Run(cmd.Context(), up)
			reportResult(cmd, upResult)
			if err != nil {
				return describeExecutionError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "yoyo: reapplied %d migration(s)\n", len(upResult.Completed))
			return nil
		},
	}
}
