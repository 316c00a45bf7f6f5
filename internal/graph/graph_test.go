package graph

import "testing"

func mig(id string, deps ...string) *Migration {
	m := NewMigration(id)
	for _, d := range deps {
		m.DependsOn[d] = struct{}{}
	}
	return m
}

func TestNewDetectsDuplicateID(t *testing.T) {
	_, err := New([]*Migration{mig("0001"), mig("0001")}, nil)
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestNewDetectsUnknownDependency(t *testing.T) {
	_, err := New([]*Migration{mig("0002", "0001")}, nil)
	if err == nil {
		t.Fatal("expected unknown dependency error")
	}
}

func TestNewDetectsCycle(t *testing.T) {
	_, err := New([]*Migration{mig("a", "b"), mig("b", "a")}, nil)
	if err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestNewBuildsGhostVertexForMissingApplied(t *testing.T) {
	g, err := New([]*Migration{mig("0001")}, map[string]struct{}{"0000": {}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ghost, ok := g.Get("0000")
	if !ok || !ghost.Ghost {
		t.Fatal("expected ghost vertex for 0000")
	}
}

func TestCanonicalOrderIsDependencyThenFilename(t *testing.T) {
	g, err := New([]*Migration{
		mig("0003", "0001"),
		mig("0002", "0001"),
		mig("0001"),
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plan, err := g.ApplyPlan(nil, "")
	if err != nil {
		t.Fatalf("ApplyPlan: %v", err)
	}
	want := []string{"0001", "0002", "0003"}
	if len(plan.Migrations) != len(want) {
		t.Fatalf("got %v, want %v", plan.Migrations, want)
	}
	for i, id := range want {
		if plan.Migrations[i] != id {
			t.Fatalf("got %v, want %v", plan.Migrations, want)
		}
	}
}

func TestRollbackPlanOrdersDescendantsFirst(t *testing.T) {
	g, err := New([]*Migration{
		mig("0001"),
		mig("0002", "0001"),
	}, map[string]struct{}{"0001": {}, "0002": {}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plan, err := g.RollbackPlan(map[string]struct{}{"0001": {}, "0002": {}}, "0001")
	if err != nil {
		t.Fatalf("RollbackPlan: %v", err)
	}
	if len(plan.Migrations) != 2 || plan.Migrations[0] != "0002" || plan.Migrations[1] != "0001" {
		t.Fatalf("unexpected rollback order: %v", plan.Migrations)
	}
}

func TestApplyPlanRestrictedToTargetAndAncestors(t *testing.T) {
	g, err := New([]*Migration{
		mig("0001"),
		mig("0002", "0001"),
		mig("0003", "0001"),
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plan, err := g.ApplyPlan(nil, "0002")
	if err != nil {
		t.Fatalf("ApplyPlan: %v", err)
	}
	if len(plan.Migrations) != 2 || plan.Migrations[0] != "0001" || plan.Migrations[1] != "0002" {
		t.Fatalf("unexpected plan: %v", plan.Migrations)
	}
}
