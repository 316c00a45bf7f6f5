package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/cliutil"
)

// newNewCmd scaffolds an apply/rollback SQL pair for a new migration. It
// does not touch the database: no session is opened (§6, "new" never
// acquires a lock or connects).
func newNewCmd() *cobra.Command {
	var dependsOn []string
	var nonTransactional bool

	cmd := &cobra.Command{
		Use:   "new <id>",
		Short: "Scaffold a new migration's apply/rollback SQL pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if id == "" {
				return cliutil.WrapError("migration id required", nil, "", cliutil.ExitGeneric)
			}

			dir := "migrations"
			if len(flags.sources) > 0 {
				dir = flags.sources[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return cliutil.WrapError(fmt.Sprintf("create %s", dir), err, "", cliutil.ExitGeneric)
			}

			upPath := filepath.Join(dir, id+".sql")
			downPath := filepath.Join(dir, id+".rollback.sql")
			if _, err := os.Stat(upPath); err == nil {
				return cliutil.WrapError(fmt.Sprintf("file exists: %s", upPath), nil, "", cliutil.ExitGeneric)
			}

			var directives strings.Builder
			for _, dep := range dependsOn {
				fmt.Fprintf(&directives, "-- depends: %s\n", dep)
			}
			if nonTransactional {
				directives.WriteString("-- transactional: false\n")
			}

			up := directives.String() + "-- " + id + ": forward migration\n"
			down := directives.String() + "-- " + id + ": reverse migration\n"

			if err := os.WriteFile(upPath, []byte(up), 0o644); err != nil {
				return cliutil.WrapError(fmt.Sprintf("write %s", upPath), err, "", cliutil.ExitGeneric)
			}
			if err := os.WriteFile(downPath, []byte(down), 0o644); err != nil {
				return cliutil.WrapError(fmt.Sprintf("write %s", downPath), err, "", cliutil.ExitGeneric)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "yoyo: created %s and %s\n", upPath, downPath)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&dependsOn, "depends", nil, "migration id this one depends on (repeatable)")
	cmd.Flags().BoolVar(&nonTransactional, "non-transactional", false, "mark the migration as non-transactional")
	return cmd
}
