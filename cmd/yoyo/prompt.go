package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/internal/graph"
)

// announcePlan prints the migrations a command is about to touch, per §6:
// "each command prints the list of migrations it intends to touch before
// touching them (unless --batch)".
func announcePlan(cmd *cobra.Command, plan graph.Plan) {
	if flags.batch || flags.quiet {
		return
	}
	verb := "apply"
	if plan.Direction == graph.Rollback {
		verb = "roll back"
	}
	if len(plan.Migrations) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "yoyo: nothing to do")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "yoyo: about to %s %d migration(s):\n", verb, len(plan.Migrations))
	for _, id := range plan.Migrations {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
	}
}

// confirm asks the user to proceed, unless --batch was given (§6).
func confirm(cmd *cobra.Command) (bool, error) {
	if flags.batch {
		return true, nil
	}
	fmt.Fprint(cmd.OutOrStdout(), "Proceed? [y/N] ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
