package graph

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaDriftError signals that bookkeeping records migrations whose source
// files are no longer present and whose rollback cannot be reconstructed.
type SchemaDriftError struct {
	Missing []string
}

func (e SchemaDriftError) Error() string {
	return fmt.Sprintf("graph: schema drift detected: %s", strings.Join(e.Missing, ", "))
}

// ErrNoAppliedMigrations indicates rollback was requested but nothing has
// been recorded as applied.
var ErrNoAppliedMigrations = errors.New("graph: no applied migrations to rollback")

// ErrDuplicateID is wrapped into the error New returns when two loaded
// migrations share one id (§7 load error).
type ErrDuplicateID struct {
	ID string
}

func (e ErrDuplicateID) Error() string {
	return fmt.Sprintf("graph: duplicate migration id %q", e.ID)
}

// ErrUnknownDependency is wrapped into the error New returns when a
// `depends_on` reference names an id absent from the loaded set (§7 load
// error: "missing id in depends").
type ErrUnknownDependency struct {
	MigrationID string
	DependsOn   string
}

func (e ErrUnknownDependency) Error() string {
	return fmt.Sprintf("graph: migration %q depends on unknown id %q", e.MigrationID, e.DependsOn)
}

// ErrCycle is wrapped into the error New returns when the dependency graph
// is not acyclic (§7 load error).
type ErrCycle struct {
	Path []string
}

func (e ErrCycle) Error() string {
	return fmt.Sprintf("graph: dependency cycle detected: %v", e.Path)
}

// ErrUnknownMigration is returned by ApplyPlan/RollbackPlan when a target id
// is not a vertex in the graph (e.g. a typo'd -r/--revision, §6).
type ErrUnknownMigration struct {
	ID string
}

func (e ErrUnknownMigration) Error() string {
	return fmt.Sprintf("graph: unknown migration %q", e.ID)
}
