package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/cliutil"
)

// newListCmd prints every known migration in canonical order, marking which
// are applied, unapplied, or ghost (applied but no longer present on disk).
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every migration and its applied status",
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

			all := map[string]struct{}{}
			for _, m := range sess.graph.All() {
				all[m.ID] = struct{}{}
			}
			order := sess.graph.CanonicalOrder(all)

			out := cmd.OutOrStdout()
			for _, id := range order {
				m, _ := sess.graph.Get(id)
				status := "unapplied"
				if _, ok := applied[id]; ok {
					status = "applied"
				}
				if m.Ghost {
					status = "ghost (applied, source missing)"
				}
				fmt.Fprintf(out, "%-40s %s\n", id, status)
			}
			return nil
		},
	}
}
