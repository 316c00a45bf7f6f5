package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/cliutil"
	"github.com/deicod/yoyo/internal/engine"
)

// reportResult prints swallowed ignore_errors failures, which are not fatal
// but worth surfacing (§7).
func reportResult(cmd *cobra.Command, result engine.Result) {
	if flags.quiet {
		return
	}
	for _, ignored := range result.IgnoredErrors {
		fmt.Fprintf(cmd.ErrOrStderr(), "yoyo: ignored error: %v\n", ignored)
	}
	if result.PostApplyRan {
		fmt.Fprintln(cmd.OutOrStdout(), "yoyo: post-apply hook ran")
	}
}

// describeExecutionError turns an engine.StepFailure into a CommandError
// carrying the exit code and suggestion §7 expects; any other error is
// wrapped generically.
func describeExecutionError(err error) error {
	var stepErr *engine.StepFailure
	if errors.As(err, &stepErr) {
		suggestion := "Fix the migration and re-run."
		if stepErr.Partial {
			suggestion = "This migration is non-transactional; inspect the database for partial state before re-running."
		}
		return cliutil.ExecutionError(fmt.Sprintf("%s failed", stepErr.MigrationID), stepErr, suggestion)
	}
	return cliutil.ExecutionError("run plan", err, "")
}
