// Package domain contains the core domain models for the module dependency
// graph, transforms, and build outputs.
package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// ModuleGraph tracks every discovered source unit and the dependency edges
// between them. It is the single source of truth for what a build revision
// contains. Mutation is not synchronized; the build orchestrator is the only
// writer and serializes all graph changes through its commit step.
type ModuleGraph struct {
	nodes map[InternedString]*graphNode
	// importers is the reverse index: target ID -> set of units importing it.
	// It is keyed independently of nodes so edges to units that failed to
	// resolve (or do not exist yet) still register importers; creating the
	// missing file later must dirty them.
	importers map[InternedString]map[InternedString]struct{}
	sequence  []InternedString
	nextSeq   int
}

type graphNode struct {
	unit  SourceUnit
	edges []Edge
	// seq is the first-discovery ordinal, used to break ordering ties.
	seq int
}

// NewModuleGraph creates a new empty ModuleGraph.
func NewModuleGraph() *ModuleGraph {
	return &ModuleGraph{
		nodes:     make(map[InternedString]*graphNode),
		importers: make(map[InternedString]map[InternedString]struct{}),
	}
}

// AddOrReplace inserts a unit with its outgoing edges, replacing any prior
// snapshot of the same unit wholesale. Replacement keeps the unit's original
// discovery ordinal so emission order stays stable across rebuilds.
func (g *ModuleGraph) AddOrReplace(unit SourceUnit, edges []Edge) {
	node, exists := g.nodes[unit.ID]
	if exists {
		g.dropReverseEdges(unit.ID, node.edges)
		node.unit = unit
		node.edges = slices.Clone(edges)
	} else {
		node = &graphNode{unit: unit, edges: slices.Clone(edges), seq: g.nextSeq}
		g.nextSeq++
		g.nodes[unit.ID] = node
		g.sequence = append(g.sequence, unit.ID)
	}
	for _, e := range node.edges {
		set := g.importers[e.To]
		if set == nil {
			set = make(map[InternedString]struct{})
			g.importers[e.To] = set
		}
		set[unit.ID] = struct{}{}
	}
}

// Remove deletes a unit and its outgoing edges. Edges pointing at the removed
// unit are kept; their owners now have an unresolvable dependency, which the
// next build of those units reports.
func (g *ModuleGraph) Remove(id InternedString) {
	node, exists := g.nodes[id]
	if !exists {
		return
	}
	g.dropReverseEdges(id, node.edges)
	delete(g.nodes, id)
	if i := slices.Index(g.sequence, id); i >= 0 {
		g.sequence = slices.Delete(g.sequence, i, i+1)
	}
}

func (g *ModuleGraph) dropReverseEdges(from InternedString, edges []Edge) {
	for _, e := range edges {
		set := g.importers[e.To]
		if set == nil {
			continue
		}
		delete(set, from)
		if len(set) == 0 {
			delete(g.importers, e.To)
		}
	}
}

// Unit returns the current snapshot of a unit.
func (g *ModuleGraph) Unit(id InternedString) (SourceUnit, bool) {
	node, ok := g.nodes[id]
	if !ok {
		return SourceUnit{}, false
	}
	return node.unit, true
}

// Contains reports whether the unit is in the graph.
func (g *ModuleGraph) Contains(id InternedString) bool {
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of units in the graph.
func (g *ModuleGraph) Len() int {
	return len(g.nodes)
}

// Edges returns a copy of the unit's outgoing edges in declaration order.
func (g *ModuleGraph) Edges(id InternedString) []Edge {
	node, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(node.edges)
}

// Importers returns the units that directly import the given ID, ordered by
// discovery ordinal.
func (g *ModuleGraph) Importers(id InternedString) []InternedString {
	set := g.importers[id]
	if len(set) == 0 {
		return nil
	}
	out := make([]InternedString, 0, len(set))
	for from := range set {
		out = append(out, from)
	}
	g.sortBySequence(out)
	return out
}

// UnresolvedTargets returns the edge targets referenced by at least one unit
// but not present in the graph, sorted by ID.
func (g *ModuleGraph) UnresolvedTargets() []InternedString {
	var out []InternedString
	for id := range g.importers {
		if _, ok := g.nodes[id]; !ok {
			out = append(out, id)
		}
	}
	slices.SortFunc(out, func(a, b InternedString) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

// Units returns an iterator over all unit snapshots in discovery order.
func (g *ModuleGraph) Units() iter.Seq[SourceUnit] {
	return func(yield func(SourceUnit) bool) {
		for _, id := range g.sequence {
			if !yield(g.nodes[id].unit) {
				return
			}
		}
	}
}

// Invalidate computes the dirty set for a changed unit: the unit itself plus
// everything that transitively imports it. The walk follows reverse edges
// only, so siblings of the changed unit are never touched. The changed ID
// does not need to be a known unit; a path that is the unresolved target of
// existing edges still dirties its importers.
func (g *ModuleGraph) Invalidate(id InternedString) iter.Seq[InternedString] {
	return func(yield func(InternedString) bool) {
		seen := map[InternedString]struct{}{id: {}}
		queue := []InternedString{id}
		dirty := make([]InternedString, 0, 8)
		if g.Contains(id) {
			dirty = append(dirty, id)
		}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for from := range g.importers[cur] {
				if _, ok := seen[from]; ok {
					continue
				}
				seen[from] = struct{}{}
				queue = append(queue, from)
				dirty = append(dirty, from)
			}
		}
		// Map iteration above is unordered; normalize so rebuild batches are
		// deterministic.
		g.sortBySequence(dirty)
		for _, d := range dirty {
			if !yield(d) {
				return
			}
		}
	}
}

func (g *ModuleGraph) sortBySequence(ids []InternedString) {
	slices.SortFunc(ids, func(a, b InternedString) int {
		na, aok := g.nodes[a]
		nb, bok := g.nodes[b]
		switch {
		case aok && bok:
			return na.seq - nb.seq
		case aok:
			return -1
		case bok:
			return 1
		default:
			return strings.Compare(a.String(), b.String())
		}
	})
}

// TopologicalOrder returns every unit reachable from the entries, dependencies
// before dependents. Entries are walked in the given order and edges in
// declaration order, so ties resolve by first discovery. Lazy edges contribute
// reachability but never ordering constraints; a cycle closed purely through
// lazy edges is therefore allowed, while a static back edge is an error.
func (g *ModuleGraph) TopologicalOrder(entries []InternedString) ([]InternedString, error) {
	order := make([]InternedString, 0, len(g.nodes))
	visited := make(map[InternedString]int, len(g.nodes)) // 0: unvisited, 1: visiting, 2: visited
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		for _, e := range g.nodes[u].edges {
			if _, exists := g.nodes[e.To]; !exists {
				// Unresolved target; the owning unit already carries the
				// diagnostic for it.
				continue
			}
			switch visited[e.To] {
			case 1:
				if !e.Kind.Lazy() {
					return g.buildCycleError(path, e.To)
				}
			case 0:
				if err := visit(e.To); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		order = append(order, u)
		return nil
	}

	for _, entry := range entries {
		if _, exists := g.nodes[entry]; !exists {
			return nil, zerr.With(ErrUnitNotFound, "unit", entry.String())
		}
		if visited[entry] == 0 {
			if err := visit(entry); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}

// buildCycleError constructs an error with cycle path metadata.
func (g *ModuleGraph) buildCycleError(path []InternedString, to InternedString) error {
	startIdx := slices.Index(path, to)
	cyclePath := ""
	for i := startIdx; i >= 0 && i < len(path); i++ {
		cyclePath += path[i].String() + " -> "
	}
	cyclePath += to.String()
	return zerr.With(ErrCycleDetected, "cycle", cyclePath)
}

// ReachableFrom returns an iterator over every unit reachable from the entry
// through edges of any kind, in depth-first declaration order, starting with
// the entry itself.
func (g *ModuleGraph) ReachableFrom(entry InternedString) iter.Seq[InternedString] {
	return func(yield func(InternedString) bool) {
		if !g.Contains(entry) {
			return
		}
		seen := make(map[InternedString]struct{})
		var visit func(u InternedString) bool
		visit = func(u InternedString) bool {
			seen[u] = struct{}{}
			if !yield(u) {
				return false
			}
			for _, e := range g.nodes[u].edges {
				if _, exists := g.nodes[e.To]; !exists {
					continue
				}
				if _, ok := seen[e.To]; ok {
					continue
				}
				if !visit(e.To) {
					return false
				}
			}
			return true
		}
		visit(entry)
	}
}

// Validate checks that the graph contains no cycle held together by static
// edges. It partitions the graph into strongly connected components over
// non-lazy edges; any component with more than one member, or a unit that
// statically imports itself, is fatal. The error lists every member of the
// offending component.
func (g *ModuleGraph) Validate() error {
	state := newSCCState(len(g.nodes))
	for _, id := range g.sequence {
		if _, seen := state.index[id]; !seen {
			if err := g.strongConnect(id, state); err != nil {
				return err
			}
		}
	}
	return nil
}

type sccState struct {
	index   map[InternedString]int
	lowlink map[InternedString]int
	onStack map[InternedString]bool
	stack   []InternedString
	counter int
}

func newSCCState(capacity int) *sccState {
	return &sccState{
		index:   make(map[InternedString]int, capacity),
		lowlink: make(map[InternedString]int, capacity),
		onStack: make(map[InternedString]bool, capacity),
	}
}

func (g *ModuleGraph) strongConnect(u InternedString, s *sccState) error {
	s.index[u] = s.counter
	s.lowlink[u] = s.counter
	s.counter++
	s.stack = append(s.stack, u)
	s.onStack[u] = true

	selfLoop := false
	for _, e := range g.nodes[u].edges {
		if e.Kind.Lazy() {
			continue
		}
		if e.To == u {
			selfLoop = true
			continue
		}
		if _, exists := g.nodes[e.To]; !exists {
			continue
		}
		if _, seen := s.index[e.To]; !seen {
			if err := g.strongConnect(e.To, s); err != nil {
				return err
			}
			s.lowlink[u] = min(s.lowlink[u], s.lowlink[e.To])
		} else if s.onStack[e.To] {
			s.lowlink[u] = min(s.lowlink[u], s.index[e.To])
		}
	}

	if s.lowlink[u] != s.index[u] {
		return nil
	}

	// u is the root of a component; pop it off the stack.
	var members []InternedString
	for {
		top := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		s.onStack[top] = false
		members = append(members, top)
		if top == u {
			break
		}
	}
	if len(members) > 1 || selfLoop {
		return g.buildComponentError(members)
	}
	return nil
}

// buildComponentError constructs a cycle error listing every component member.
func (g *ModuleGraph) buildComponentError(members []InternedString) error {
	g.sortBySequence(members)
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.String()
	}
	err := zerr.With(ErrCycleDetected, "members", strings.Join(names, ", "))
	return zerr.With(err, "size", len(members))
}
