package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/cliutil"
	"github.com/deicod/yoyo/internal/backend"
)

// newBreakLockCmd forcibly clears the cross-process lock regardless of
// holder (see Backend.BreakLock), for recovering from a crashed or killed process that never ran
// its release function (§6 administrative command).
func newBreakLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "break-lock",
		Short: "Forcibly release the cross-process migration lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveSettings(cmd)
			if err != nil {
				return cliutil.LoadError("resolve settings", err, "")
			}

			b, err := backend.New(cfg.DatabaseURL, cfg.LockKey)
			if err != nil {
				var unknown backend.ErrUnknownScheme
				if errors.As(err, &unknown) {
					return cliutil.LoadError(fmt.Sprintf("unsupported database scheme %q", unknown.Scheme), err,
						"Use one of: postgres, mysql, sqlite, redshift.")
				}
				return cliutil.LoadError("parse --database", err, "")
			}
			if err := b.Connect(cmd.Context(), cfg.DatabaseURL); err != nil {
				return cliutil.ExecutionError(fmt.Sprintf("connect to %s", redactURL(cfg.DatabaseURL)), err, "")
			}
			defer b.Close(cmd.Context())

			if err := b.BreakLock(cmd.Context()); err != nil {
				return cliutil.ExecutionError("break lock", err, "")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "yoyo: lock released")
			return nil
		},
	}
}
