package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/cliutil"
)

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Apply every unapplied migration (or up to --revision)",
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
			plan, err := sess.graph.ApplyPlan(applied, cfg.Revision)
			if err != nil {
				return cliutil.LoadError("build apply plan", err, describeGraphError(err))
			}

			announcePlan(cmd, plan)
			if len(plan.Migrations) == 0 {
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

			result, err := sess.engine.Run(cmd.Context(), plan)
			reportResult(cmd, result)
			if err != nil {
				return describeExecutionError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "yoyo: applied %d migration(s)\n", len(result.Completed))
			return nil
		},
	}
}
