package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/cliutil"
	"github.com/deicod/yoyo/internal/graph"
	"github.com/deicod/yoyo/internal/loader"
	"github.com/deicod/yoyo/internal/settings"
)

// newDevelopCmd implements the inner-loop iteration command: apply every
// unapplied migration; if there is nothing to apply, roll back the n most
// recently applied migrations (from the log, not the graph) and reapply
// them, so an author can re-run their own in-progress migration repeatedly
// without hand-rolling a rollback/apply cycle (§4.2).
func newDevelopCmd() *cobra.Command {
	var n int
	var watch bool

	cmd := &cobra.Command{
		Use:   "develop",
		Short: "Apply unapplied migrations, or cycle the n most recent ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveSettings(cmd)
			if err != nil {
				return cliutil.LoadError("resolve settings", err, "")
			}

			if err := runDevelopOnce(cmd, cfg, n); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			for _, spec := range cfg.Sources {
				events, err := loader.Watch(cmd.Context(), spec)
				if err != nil {
					continue
				}
				go func(events <-chan struct{}) {
					for range events {
						_ = runDevelopOnce(cmd, cfg, n)
					}
				}(events)
			}
			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 1, "how many recently applied migrations to cycle when nothing is unapplied")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running, re-cycling whenever a source directory changes")
	return cmd
}

// runDevelopOnce performs one iteration: apply-all-unapplied, or, when
// nothing is unapplied, roll back the n most recent log entries in reverse
// log order and reapply them in forward order (§4.2 "Develop" semantics).
func runDevelopOnce(cmd *cobra.Command, cfg settings.Settings, n int) error {
	sess, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer sess.release(cmd.Context())

	applied, err := sess.backend.AppliedSet(cmd.Context())
	if err != nil {
		return cliutil.ExecutionError("read applied-migrations set", err, "")
	}

	applyPlan, err := sess.graph.ApplyPlan(applied, "")
	if err != nil {
		return cliutil.LoadError("build apply plan", err, describeGraphError(err))
	}

	if len(applyPlan.Migrations) > 0 {
		announcePlan(cmd, applyPlan)
		result, err := sess.engine.Run(cmd.Context(), applyPlan)
		reportResult(cmd, result)
		if err != nil {
			return describeExecutionError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "yoyo: applied %d migration(s)\n", len(result.Completed))
		return nil
	}

	recent, err := sess.backend.RecentLog(cmd.Context(), n)
	if err != nil {
		return cliutil.ExecutionError("read recent log", err, "")
	}
	if len(recent) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "yoyo: nothing to do")
		return nil
	}

	down := graph.Plan{Direction: graph.Rollback, Migrations: recent}
	announcePlan(cmd, down)
	downResult, err := sess.engine.Run(cmd.Context(), down)
	reportResult(cmd, downResult)
	if err != nil {
		return describeExecutionError(err)
	}

	forward := make([]string, len(recent))
	for i, id := range recent {
		forward[len(recent)-1-i] = id
	}
	up := graph.Plan{Direction: graph.Apply, Migrations: forward}
	upResult, err := sess.engine.Run(cmd.Context(), up)
	reportResult(cmd, upResult)
	if err != nil {
		return describeExecutionError(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "yoyo: cycled %d migration(s)\n", len(upResult.Completed))
	return nil
}
