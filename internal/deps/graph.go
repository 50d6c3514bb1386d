package deps

import (
	"sort"
	"strings"

	"taskdesk/internal/domain"
)

// Policy controls whether incomplete dependencies block status changes.
type Policy string

const (
	PolicyOff     Policy = "off"
	PolicyWarn    Policy = "warn"
	PolicyEnforce Policy = "enforce"
)

func (p Policy) Valid() bool {
	return p == PolicyOff || p == PolicyWarn || p == PolicyEnforce
}

// Gated reports whether a move into status requires dependencies to be done.
func Gated(status domain.Status) bool {
	return status == domain.StatusInProgress || status == domain.StatusCompleted
}

type Readiness struct {
	TaskID    string   `json:"taskId"`
	Ready     bool     `json:"ready"`
	BlockedBy []string `json:"blockedBy"`
}

// Graph is a snapshot of the dependency edges of a task collection. Edges
// point from a task to the tasks it depends on.
type Graph struct {
	status map[string]domain.Status
	edges  map[string][]string
	order  []string
}

func Build(tasks []domain.Task) *Graph {
	g := &Graph{
		status: make(map[string]domain.Status, len(tasks)),
		edges:  make(map[string][]string, len(tasks)),
		order:  make([]string, 0, len(tasks)),
	}
	for _, t := range tasks {
		g.status[t.ID] = t.Status
		g.edges[t.ID] = append([]string(nil), t.Dependencies...)
		g.order = append(g.order, t.ID)
	}
	return g
}

// CanStart reports whether every dependency of id exists and is completed.
// Unknown dependency ids block.
func (g *Graph) CanStart(id string) Readiness {
	r := Readiness{TaskID: id, BlockedBy: []string{}}
	for _, dep := range g.edges[id] {
		if st, ok := g.status[dep]; !ok || st != domain.StatusCompleted {
			r.BlockedBy = append(r.BlockedBy, dep)
		}
	}
	r.Ready = len(r.BlockedBy) == 0
	return r
}

// Dependents returns the ids that depend on id, in collection order.
func (g *Graph) Dependents(id string) []string {
	out := make([]string, 0)
	for _, from := range g.order {
		for _, dep := range g.edges[from] {
			if dep == id {
				out = append(out, from)
				break
			}
		}
	}
	return out
}

// ValidateDependencies checks that giving id the dependency list proposed
// keeps the graph acyclic. id may be a task that is not in the graph yet.
func (g *Graph) ValidateDependencies(id string, proposed []string) error {
	for _, dep := range proposed {
		if strings.TrimSpace(dep) == "" {
			return domain.Validationf("dependency id must not be empty")
		}
		if dep == id {
			return domain.Invariantf("task %s cannot depend on itself", id)
		}
	}
	// a cycle exists iff id is reachable from one of its new dependencies
	seen := map[string]bool{}
	stack := append([]string(nil), proposed...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == id {
			return domain.Invariantf("dependency cycle detected through task %s", id)
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, g.edges[cur]...)
	}
	return nil
}

// DetectCycle returns one cycle in the graph, or nil.
func (g *Graph) DetectCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.order))
	var path []string
	var found []string
	var visit func(string) bool
	visit = func(id string) bool {
		color[id] = grey
		path = append(path, id)
		for _, dep := range g.edges[id] {
			if _, known := g.status[dep]; !known {
				continue
			}
			switch color[dep] {
			case grey:
				for i, p := range path {
					if p == dep {
						found = append([]string(nil), path[i:]...)
						break
					}
				}
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}
	for _, id := range g.order {
		if color[id] == white && visit(id) {
			return found
		}
	}
	return nil
}

// TopoOrder lists task ids so that every task comes after its known
// dependencies. Ties follow collection order. It fails on a cycle.
func (g *Graph) TopoOrder() ([]string, error) {
	if cycle := g.DetectCycle(); cycle != nil {
		return nil, domain.Invariantf("dependency cycle: %s", strings.Join(cycle, " -> "))
	}
	index := make(map[string]int, len(g.order))
	for i, id := range g.order {
		index[id] = i
	}
	pending := make(map[string]int, len(g.order))
	for _, id := range g.order {
		for _, dep := range g.edges[id] {
			if _, ok := g.status[dep]; ok {
				pending[id]++
			}
		}
	}
	var ready []string
	for _, id := range g.order {
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}
	out := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return index[ready[i]] < index[ready[j]] })
		cur := ready[0]
		ready = ready[1:]
		out = append(out, cur)
		for _, dependent := range g.Dependents(cur) {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	return out, nil
}
