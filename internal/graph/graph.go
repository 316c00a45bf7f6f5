package graph

import (
	"sort"
)

// Graph is a directed acyclic graph of migrations. Edges point from a
// dependency to its dependent, matching the depends_on relation.
type Graph struct {
	vertices map[string]*Migration
}

// New builds a Graph from the loader's migrations plus the backend's
// applied-set. Applied ids absent from migrations become ghost vertices.
// Returns a load-time error for duplicate ids, cycles, or unknown
// dependency references.
func New(migrations []*Migration, applied map[string]struct{}) (*Graph, error) {
	g := &Graph{vertices: make(map[string]*Migration, len(migrations))}

	for _, m := range migrations {
		if m.IsPostApply {
			continue
		}
		if _, dup := g.vertices[m.ID]; dup {
			return nil, ErrDuplicateID{ID: m.ID}
		}
		g.vertices[m.ID] = m
	}

	for id := range applied {
		if _, ok := g.vertices[id]; !ok {
			g.vertices[id] = GhostMigration(id)
		}
	}

	for _, m := range g.vertices {
		for dep := range m.DependsOn {
			if _, ok := g.vertices[dep]; !ok {
				return nil, ErrUnknownDependency{MigrationID: m.ID, DependsOn: dep}
			}
		}
	}

	if cyc := g.findCycle(); cyc != nil {
		return nil, ErrCycle{Path: cyc}
	}

	return g, nil
}

// Get returns the vertex for id, if present.
func (g *Graph) Get(id string) (*Migration, bool) {
	m, ok := g.vertices[id]
	return m, ok
}

// All returns every vertex, including ghosts, in no particular order.
func (g *Graph) All() []*Migration {
	out := make([]*Migration, 0, len(g.vertices))
	for _, m := range g.vertices {
		out = append(out, m)
	}
	return out
}

// findCycle returns a minimal cycle as a slice of ids, or nil if the graph is
// acyclic.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.vertices))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		m := g.vertices[id]
		deps := sortedKeys(m.DependsOn)
		for _, dep := range deps {
			switch color[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				cycle = append(append([]string{}, path...), dep)
				return true
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range sortedIDs(g.vertices) {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// Ancestors returns the transitive dependency set of id (not including id).
func (g *Graph) Ancestors(id string) map[string]struct{} {
	out := map[string]struct{}{}
	var walk func(string)
	walk = func(cur string) {
		m, ok := g.vertices[cur]
		if !ok {
			return
		}
		for dep := range m.DependsOn {
			if _, seen := out[dep]; seen {
				continue
			}
			out[dep] = struct{}{}
			walk(dep)
		}
	}
	walk(id)
	return out
}

// Descendants returns the set of ids transitively depending on id (not
// including id itself).
func (g *Graph) Descendants(id string) map[string]struct{} {
	children := make(map[string][]string, len(g.vertices))
	for _, m := range g.vertices {
		for dep := range m.DependsOn {
			children[dep] = append(children[dep], m.ID)
		}
	}
	out := map[string]struct{}{}
	var walk func(string)
	walk = func(cur string) {
		for _, child := range children[cur] {
			if _, seen := out[child]; seen {
				continue
			}
			out[child] = struct{}{}
			walk(child)
		}
	}
	walk(id)
	return out
}

// CanonicalOrder returns ids restricted to subset in dependency-then-id
// order: a deterministic topological sort that, among vertices whose
// dependencies are already ordered, always picks the lexicographically
// smallest remaining id.
func (g *Graph) CanonicalOrder(subset map[string]struct{}) []string {
	inDegree := make(map[string]int, len(subset))
	dependents := make(map[string][]string, len(subset))

	for id := range subset {
		m := g.vertices[id]
		count := 0
		for dep := range m.DependsOn {
			if _, inSubset := subset[dep]; inSubset {
				count++
				dependents[dep] = append(dependents[dep], id)
			}
		}
		inDegree[id] = count
	}

	var frontier []string
	for id, deg := range inDegree {
		if deg == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Strings(frontier)

	var order []string
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		order = append(order, next)

		inserted := false
		for _, dependent := range sortedStrings(dependents[next]) {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				idx := sort.SearchStrings(frontier, dependent)
				frontier = append(frontier, "")
				copy(frontier[idx+1:], frontier[idx:])
				frontier[idx] = dependent
				inserted = true
			}
		}
		_ = inserted
	}

	return order
}

func sortedStrings(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedIDs(m map[string]*Migration) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
