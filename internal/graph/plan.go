package graph

// Plan is the ordered list of migration ids to execute in Direction.
type Plan struct {
	Direction  Direction
	Migrations []string
}

// ApplyPlan computes the canonical order of unapplied migrations. When
// target is non-empty, the plan is restricted to target and its ancestors;
// otherwise every unapplied, non-ghost vertex whose transitive dependencies
// are satisfied is included.
func (g *Graph) ApplyPlan(applied map[string]struct{}, target string) (Plan, error) {
	if target != "" {
		m, ok := g.Get(target)
		if !ok || m.Ghost {
			return Plan{}, ErrUnknownMigration{ID: target}
		}
		subset := map[string]struct{}{target: {}}
		for id := range g.Ancestors(target) {
			subset[id] = struct{}{}
		}
		for id := range applied {
			delete(subset, id)
		}
		return Plan{Direction: Apply, Migrations: g.CanonicalOrder(subset)}, nil
	}

	subset := map[string]struct{}{}
	for _, m := range g.All() {
		if m.Ghost {
			continue
		}
		if _, done := applied[m.ID]; done {
			continue
		}
		subset[m.ID] = struct{}{}
	}
	return Plan{Direction: Apply, Migrations: g.CanonicalOrder(subset)}, nil
}

// RollbackPlan computes the reverse canonical order of target plus its
// applied descendants, guaranteeing dependents are undone before their
// dependencies. target == "" means roll back everything applied.
func (g *Graph) RollbackPlan(applied map[string]struct{}, target string) (Plan, error) {
	subset := map[string]struct{}{}
	if target == "" {
		if len(applied) == 0 {
			return Plan{}, ErrNoAppliedMigrations
		}
		for id := range applied {
			subset[id] = struct{}{}
		}
	} else {
		if _, ok := g.Get(target); !ok {
			return Plan{}, ErrUnknownMigration{ID: target}
		}
		if _, ok := applied[target]; ok {
			subset[target] = struct{}{}
		}
		for id := range g.Descendants(target) {
			if _, ok := applied[id]; ok {
				subset[id] = struct{}{}
			}
		}
	}

	order := g.CanonicalOrder(subset)
	reversed := make([]string, len(order))
	for i, id := range order {
		reversed[len(order)-1-i] = id
	}
	return Plan{Direction: Rollback, Migrations: reversed}, nil
}

// ReapplyPlan returns the rollback plan for target followed by the apply
// plan for the same set, matching spec semantics of "undo then redo."
func (g *Graph) ReapplyPlan(applied map[string]struct{}, target string) (down Plan, up Plan, err error) {
	down, err = g.RollbackPlan(applied, target)
	if err != nil {
		return Plan{}, Plan{}, err
	}
	remaining := map[string]struct{}{}
	for id := range applied {
		remaining[id] = struct{}{}
	}
	for _, id := range down.Migrations {
		delete(remaining, id)
	}
	subset := map[string]struct{}{}
	for _, id := range down.Migrations {
		subset[id] = struct{}{}
	}
	up = Plan{Direction: Apply, Migrations: g.CanonicalOrder(subset)}
	return down, up, nil
}
