// Command yoyo is the command-line front end for the migration engine:
// thin cobra RunE wrappers that resolve settings, build a plan from
// internal/graph, and hand it to internal/engine (§6).
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deicod/yoyo/internal/settings"
)

// sharedFlags holds the --database/--batch/... flags common to every
// subcommand (§6), mirroring the teacher root.go's persistent --verbose.
type sharedFlags struct {
	database       string
	sources        []string
	lockKey        string
	lockTimeout    time.Duration
	batch          bool
	promptPassword bool
	noConfigFile   bool
	revision       string
	verbose        bool
	quiet          bool
	configPath     string
}

var flags sharedFlags

// NewRootCmd constructs the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "yoyo",
		Short: "yoyo - a database schema migration engine",
		Long:  "yoyo plans and executes ordered SQL (or code-script) schema migrations against Postgres, MySQL, SQLite, and Redshift.",
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.database, "database", "", "database connection URL (scheme[+driver]://user:pass@host/db)")
	pf.StringSliceVar(&flags.sources, "source", nil, "migration source specifier (repeatable); filesystem glob or package:<pkg>:<subpath>")
	pf.StringVar(&flags.lockKey, "lock-key", "yoyo", "seed for the cross-process lock name")
	pf.DurationVar(&flags.lockTimeout, "lock-timeout", 0, "how long to wait for a contested lock (0 = wait forever)")
	pf.BoolVar(&flags.batch, "batch", false, "skip the per-migration confirmation prompt")
	pf.BoolVarP(&flags.promptPassword, "prompt-password", "p", false, "prompt for a database password interactively")
	pf.BoolVar(&flags.noConfigFile, "no-config-file", false, "do not read yoyo.yaml from the working directory")
	pf.StringVarP(&flags.revision, "revision", "r", "", "target migration id for commands that accept one")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "suppress non-essential output")
	pf.StringVar(&flags.configPath, "config", "yoyo.yaml", "path to the resolved settings file")

	cmd.AddCommand(newNewCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newRollbackCmd())
	cmd.AddCommand(newReapplyCmd())
	cmd.AddCommand(newDevelopCmd())
	cmd.AddCommand(newMarkCmd())
	cmd.AddCommand(newUnmarkCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newBreakLockCmd())

	return cmd
}

// resolveSettings layers the optional config file under the process's
// shared flags (flags win, per settings.Merge), then prompts for a password
// when requested. Every data-touching command calls this first, before any
// lock or connection work (§7: load errors precede mutation).
var resolveSettings = func(cmd *cobra.Command) (settings.Settings, error) {
	base := settings.Settings{}
	if !flags.noConfigFile {
		var err error
		base, err = settings.Load(flags.configPath)
		if err != nil {
			return settings.Settings{}, err
		}
	}

	override := settings.Settings{
		DatabaseURL:    flags.database,
		Sources:        flags.sources,
		LockKey:        flags.lockKey,
		LockTimeout:    flags.lockTimeout,
		Batch:          flags.batch,
		PromptPassword: flags.promptPassword,
		Revision:       flags.revision,
		Verbose:        flags.verbose,
		Quiet:          flags.quiet,
	}
	cfg := settings.Merge(base, override)

	if cfg.PromptPassword {
		password, err := promptPassword(cmd)
		if err != nil {
			return settings.Settings{}, fmt.Errorf("prompt for password: %w", err)
		}
		withPassword, err := injectPassword(cfg.DatabaseURL, password)
		if err != nil {
			return settings.Settings{}, err
		}
		cfg.DatabaseURL = withPassword
	}

	if err := cfg.Validate(); err != nil {
		return settings.Settings{}, err
	}
	return cfg, nil
}
