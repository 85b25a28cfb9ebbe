package stat

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/udisondev/skillflow/internal/formula"
)

// ErrCycle is wrapped by every error ValidateGraph reports.
var ErrCycle = errors.New("stat dependency cycle")

// ValidateGraph walks formula and bonus dependencies and reports each cycle with
// its chain, e.g. "stat dependency cycle: a -> b -> a". Runtime resolution still
// cuts cycles to 0; this is for load-time diagnostics.
func (e *Engine) ValidateGraph() error {
	e.mu.Lock()
	edges := e.dependencyEdgesLocked()
	e.mu.Unlock()

	nodes := make([]string, 0, len(edges))
	for id := range edges {
		nodes = append(nodes, id)
	}
	slices.Sort(nodes)

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(nodes))
	var path []string
	var errs []error
	reported := make(map[string]struct{})

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		path = append(path, id)
		for _, next := range edges[id] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				start := slices.Index(path, next)
				chain := append(slices.Clone(path[start:]), next)
				key := canonicalCycle(chain[:len(chain)-1])
				if _, dup := reported[key]; !dup {
					reported[key] = struct{}{}
					errs = append(errs, fmt.Errorf("%w: %s", ErrCycle, strings.Join(chain, " -> ")))
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
	}

	for _, id := range nodes {
		if color[id] == white {
			visit(id)
		}
	}
	return errors.Join(errs...)
}

// dependencyEdgesLocked maps stat -> stats it reads. Must hold mu.
func (e *Engine) dependencyEdgesLocked() map[string][]string {
	edges := make(map[string][]string, len(e.defs))
	add := func(from, to string) {
		if !slices.Contains(edges[from], to) {
			edges[from] = append(edges[from], to)
		}
	}
	for id, d := range e.defs {
		if _, ok := edges[id]; !ok {
			edges[id] = nil
		}
		if d.Kind != KindFormula {
			continue
		}
		for _, name := range formula.Identifiers(d.Formula) {
			if name == "value" || name == "level" {
				continue
			}
			add(id, name)
		}
	}
	for target, list := range e.bonuses {
		for _, b := range list {
			add(target, b.Source)
		}
	}
	for id := range edges {
		slices.Sort(edges[id])
	}
	return edges
}

// canonicalCycle rotates the cycle to start at its smallest id so that the same
// loop found from different entry points is reported once.
func canonicalCycle(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	minIdx := 0
	for i, id := range cycle {
		if id < cycle[minIdx] {
			minIdx = i
		}
	}
	rotated := append(slices.Clone(cycle[minIdx:]), cycle[:minIdx]...)
	return strings.Join(rotated, ",")
}
