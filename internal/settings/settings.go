// Package settings defines the resolved, flat configuration object the core
// consumes. Per spec.md §6/§9, dynamic substitution and ini-style file
// inheritance are external collaborators — this package only reads one
// already-resolved YAML file (or defaults) and merges it with CLI flags;
// it performs no variable expansion or multi-file layering.
package settings

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the flat object every command in cmd/yoyo builds from flags
// plus an optional config file, then hands to internal/loader,
// internal/engine, and internal/lock.
type Settings struct {
	// DatabaseURL is the `scheme[+driver]://...` connection string (§6).
	// Corresponds to the shared `--database` flag.
	DatabaseURL string `yaml:"database_url"`
	// Sources is the ordered list of source specifiers (filesystem globs or
	// `package:<pkg>:<subpath>` tokens, §6) fed to loader.Load.
	Sources []string `yaml:"sources"`
	// LockKey seeds the backend's native-advisory-lock name
	// (internal/backend.Factory); backends using the insert-sentinel lock
	// ignore it. Distinct projects sharing one database server should set
	// distinct keys.
	LockKey string `yaml:"lock_key"`
	// LockTimeout bounds how long `Backend.Lock` waits for a contested
	// cross-process lock before returning ErrLockTimeout. Zero means wait
	// indefinitely.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// Batch corresponds to `--batch`: skip the per-migration confirmation
	// prompt and print-before-touching announcement (§6).
	Batch bool `yaml:"batch"`
	// PromptPassword corresponds to `-p/--prompt-password`: the CLI asks
	// for a password interactively instead of reading one from DatabaseURL.
	PromptPassword bool `yaml:"prompt_password"`
	// Revision corresponds to `-r/--revision`: the target migration id for
	// commands that accept one (apply, rollback, reapply).
	Revision string `yaml:"revision"`
	// Verbose and Quiet correspond to `-v`/`-q`; a command surface maps
	// them onto its own logging verbosity.
	Verbose bool `yaml:"verbose"`
	Quiet   bool `yaml:"quiet"`
}

// ErrMissingDatabaseURL is returned by Validate when no connection string
// was supplied by either the config file or the --database flag.
var ErrMissingDatabaseURL = errors.New("settings: database url is required")

// ErrNoSources is returned by Validate when no source specifier was given.
var ErrNoSources = errors.New("settings: at least one source specifier is required")

// Validate checks the invariants the core relies on before doing any load,
// lock, or connection work (§7: load errors are raised before any mutation).
func (s Settings) Validate() error {
	if s.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if len(s.Sources) == 0 {
		return ErrNoSources
	}
	return nil
}

// Load reads path as YAML into a Settings, tolerating a missing file (an
// empty, all-zero-value Settings is returned) since every field may instead
// be supplied by CLI flags via Merge.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("settings: read %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return s, nil
}

// Merge layers override on top of s: every non-zero field of override
// replaces the corresponding field of s. Used to apply CLI flags (which
// take precedence) on top of a file-resolved base.
func Merge(base, override Settings) Settings {
	out := base
	if override.DatabaseURL != "" {
		out.DatabaseURL = override.DatabaseURL
	}
	if len(override.Sources) > 0 {
		out.Sources = override.Sources
	}
	if override.LockKey != "" {
		out.LockKey = override.LockKey
	}
	if override.LockTimeout != 0 {
		out.LockTimeout = override.LockTimeout
	}
	if override.Revision != "" {
		out.Revision = override.Revision
	}
	out.Batch = out.Batch || override.Batch
	out.PromptPassword = out.PromptPassword || override.PromptPassword
	out.Verbose = out.Verbose || override.Verbose
	out.Quiet = out.Quiet || override.Quiet
	return out
}
