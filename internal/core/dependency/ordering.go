package dependency

import (
	"sort"

	"github.com/artpar/buildgen/internal/core/domain"
)

// =============================================================================
// Graph
// =============================================================================

// graph is a directed graph where an edge dep -> dependent means dep must be
// ordered first.
type graph struct {
	nodes      map[string]LinkTarget
	dependents map[string][]string
	inDegree   map[string]int
}

func newGraph() *graph {
	return &graph{
		nodes:      make(map[string]LinkTarget),
		dependents: make(map[string][]string),
		inDegree:   make(map[string]int),
	}
}

func (g *graph) addNode(t LinkTarget) {
	id := t.nodeID()
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = t
	g.inDegree[id] = 0
}

func (g *graph) addEdge(dep, dependent LinkTarget) {
	from, to := dep.nodeID(), dependent.nodeID()
	for _, existing := range g.dependents[from] {
		if existing == to {
			return
		}
	}
	g.dependents[from] = append(g.dependents[from], to)
	g.inDegree[to]++
}

func (g *graph) less(a, b string) bool {
	ka, kb := g.nodes[a].Key(), g.nodes[b].Key()
	if ka != kb {
		return ka < kb
	}
	return a < b
}

// sort runs Kahn's algorithm. Among ready nodes the one with the smallest key
// is emitted first, so the result does not depend on map iteration order.
// Nodes left over when the ready set drains are part of, or behind, a cycle.
func (g *graph) sort() (ordered []LinkTarget, blocked []string) {
	inDegree := make(map[string]int, len(g.inDegree))
	for id, d := range g.inDegree {
		inDegree[id] = d
	}

	var ready []string
	for id, d := range inDegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return g.less(ready[i], ready[j]) })

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, g.nodes[id])

		added := false
		for _, next := range g.dependents[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
				added = true
			}
		}
		if added {
			sort.Slice(ready, func(i, j int) bool { return g.less(ready[i], ready[j]) })
		}
	}

	for id, d := range inDegree {
		if d > 0 {
			blocked = append(blocked, id)
		}
	}
	sort.Strings(blocked)
	return ordered, blocked
}

// =============================================================================
// Link Order
// =============================================================================

// LinkOrder returns the projects and libraries the project links against, in
// an order where every dependency precedes its dependents. Only enabled
// projects reachable through ProjectLink edges take part; libraries are those
// returned by InternalLibraries. The project itself is not part of the result.
//
// Example:
//
//	// app -> render -> core, core publicly uses zlib (/libs/zlib)
//	r.LinkOrder("app") // [/libs/zlib, core, render]
func (r *Resolver) LinkOrder(project string) ([]LinkTarget, error) {
	p, err := r.enabledProject(project)
	if err != nil {
		return nil, err
	}
	libs, err := r.InternalLibraries(project)
	if err != nil {
		return nil, err
	}

	g := newGraph()
	reached := r.reachable(p)
	for _, q := range reached {
		g.addNode(projectTarget(q))
	}
	visible := make(map[string]LinkTarget, len(libs))
	for _, l := range libs {
		t := libraryTarget(l)
		visible[l.Path] = t
		g.addNode(t)
	}

	for _, q := range reached {
		qt := projectTarget(q)
		for _, dep := range r.projectDeps(q) {
			g.addEdge(projectTarget(dep), qt)
		}
		for _, d := range q.Dependencies {
			if !d.Type.IsLibrary() {
				continue
			}
			// A library declared under another name is the same artifact.
			if l, ok := r.libraries[d.Target]; ok {
				if lt, ok := visible[l.Path]; ok {
					g.addEdge(lt, qt)
				}
			}
		}
	}

	ordered, blocked := g.sort()
	if len(blocked) > 0 {
		if cycle := r.findCycle(reached); cycle != nil {
			return nil, cycle
		}
		return nil, &CycleError{Path: blocked}
	}

	out := make([]LinkTarget, 0, len(ordered)-1)
	for _, t := range ordered {
		if t.Kind == TargetProject && t.Name == p.Name {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ProjectOrder returns every enabled project ordered so that dependencies come
// before dependents, ties broken by name.
func (r *Resolver) ProjectOrder() ([]*domain.Project, error) {
	enabled := r.solution.EnabledProjects()

	g := newGraph()
	for _, p := range enabled {
		g.addNode(projectTarget(p))
	}
	for _, p := range enabled {
		for _, dep := range r.projectDeps(p) {
			g.addEdge(projectTarget(dep), projectTarget(p))
		}
	}

	ordered, blocked := g.sort()
	if len(blocked) > 0 {
		if cycle := r.findCycle(enabled); cycle != nil {
			return nil, cycle
		}
		return nil, &CycleError{Path: blocked}
	}

	out := make([]*domain.Project, 0, len(ordered))
	for _, t := range ordered {
		out = append(out, r.projects[t.Name])
	}
	return out, nil
}

// CheckCycles reports the first ProjectLink cycle among enabled projects.
func (r *Resolver) CheckCycles() error {
	if err := r.findCycle(r.solution.EnabledProjects()); err != nil {
		return err
	}
	return nil
}

// findCycle runs a depth-first search from each start project in order and
// returns the first cycle found, or nil.
func (r *Resolver) findCycle(starts []*domain.Project) *CycleError {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int)
	var stack []string

	var visit func(p *domain.Project) *CycleError
	visit = func(p *domain.Project) *CycleError {
		state[p.Name] = inStack
		stack = append(stack, p.Name)
		for _, dep := range r.projectDeps(p) {
			switch state[dep.Name] {
			case inStack:
				start := 0
				for i, name := range stack {
					if name == dep.Name {
						start = i
						break
					}
				}
				path := append(append([]string{}, stack[start:]...), dep.Name)
				return &CycleError{Path: path}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[p.Name] = done
		return nil
	}

	sorted := append([]*domain.Project(nil), starts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, p := range sorted {
		if state[p.Name] != unvisited {
			continue
		}
		if err := visit(p); err != nil {
			return err
		}
	}
	return nil
}

func projectTarget(p *domain.Project) LinkTarget {
	return LinkTarget{Kind: TargetProject, Name: p.Name}
}

func libraryTarget(l *domain.Library) LinkTarget {
	return LinkTarget{Kind: TargetLibrary, Name: l.Name, Path: l.Path}
}
