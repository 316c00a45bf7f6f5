// Package graph models the migration dependency graph: vertices, edges,
// validation, and deterministic ordering of apply/rollback plans.
package graph

import "context"

// IgnoreErrors controls whether a step or group's failure is swallowed for a
// given execution direction.
type IgnoreErrors int

const (
	IgnoreNone IgnoreErrors = iota
	IgnoreApply
	IgnoreRollback
	IgnoreAll
)

// Covers reports whether policy swallows a failure occurring while executing
// in the given direction.
func (i IgnoreErrors) Covers(dir Direction) bool {
	switch i {
	case IgnoreAll:
		return true
	case IgnoreApply:
		return dir == Apply
	case IgnoreRollback:
		return dir == Rollback
	default:
		return false
	}
}

// Direction is the execution direction of a plan.
type Direction int

const (
	Apply Direction = iota
	Rollback
)

// Payload is either a raw SQL statement or an opaque callable invoked with a
// live connection. Exactly one of SQL or Func is set.
type Payload struct {
	SQL  string
	Func func(ctx context.Context, conn any) error
}

// IsZero reports whether the payload carries no work.
func (p Payload) IsZero() bool {
	return p.SQL == "" && p.Func == nil
}

// Step is one unit of work within a migration. A group Step nests further
// Steps and shares one savepoint and one IgnoreErrors policy across them.
type Step struct {
	Apply        Payload
	Rollback     Payload
	IgnoreErrors IgnoreErrors

	// Group, when non-nil, makes this a group step: Apply/Rollback/SQL are
	// ignored and the nested Steps execute under one shared savepoint.
	Group []Step
}

// IsGroup reports whether the step is a nested group rather than a leaf.
func (s Step) IsGroup() bool { return s.Group != nil }

// Kind distinguishes how a Migration's steps were authored.
type Kind int

const (
	KindSQLPair Kind = iota
	KindInlineCodeScript
)

// Migration is a named unit of schema change.
type Migration struct {
	ID            string
	SourcePath    string
	Kind          Kind
	DependsOn     map[string]struct{}
	Steps         []Step
	Transactional bool
	IsPostApply   bool

	// ContentHash is a stem hash of the migration's source, stored in
	// bookkeeping to detect a file edited after it was applied.
	ContentHash string

	// Ghost marks a vertex synthesized from the applied-set because its
	// source file is no longer present. Ghosts carry no steps and are never
	// selected to apply.
	Ghost bool
}

// PostApplyID is the reserved migration id stem for post-apply hooks.
const PostApplyID = "post-apply"

// NewMigration constructs a Migration with sane zero-value defaults.
func NewMigration(id string) *Migration {
	return &Migration{
		ID:            id,
		DependsOn:     map[string]struct{}{},
		Transactional: true,
		IsPostApply:   id == PostApplyID,
	}
}

// GhostMigration returns a placeholder vertex for an id recorded as applied but no
// longer present among loaded sources.
func GhostMigration(id string) *Migration {
	return &Migration{ID: id, DependsOn: map[string]struct{}{}, Ghost: true}
}
