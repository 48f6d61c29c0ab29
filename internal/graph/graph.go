// Package graph runs a small directed graph of named steps over a shared
// session state: static and conditional edges, parallel fan-out with a join
// barrier, single-writer fan-in merging, and per-thread resumption.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MikeSquared-Agency/scout/internal/state"
)

// End is the pseudo-step that halts execution.
const End = "__end__"

var (
	ErrInvalidGraph = errors.New("invalid graph")
	ErrStepLimit    = errors.New("step limit exceeded")
)

// StepFunc reads a session view and returns a partial update.
type StepFunc func(ctx context.Context, s state.Session) (state.Update, error)

// RouteFunc inspects the session and returns an outcome key. It must not
// have side effects.
type RouteFunc func(s state.Session) string

type conditional struct {
	route    RouteFunc
	outcomes map[string][]string
}

// Graph is the step table, the static edge table and the routing table.
// Build it once with the Add* methods, then Compile.
type Graph struct {
	steps  map[string]StepFunc
	order  []string
	edges  map[string][]string
	routes map[string]conditional
	entry  *conditional
	errs   []error
}

func New() *Graph {
	return &Graph{
		steps:  make(map[string]StepFunc),
		edges:  make(map[string][]string),
		routes: make(map[string]conditional),
	}
}

// AddStep registers a step under a unique name.
func (g *Graph) AddStep(name string, fn StepFunc) *Graph {
	switch {
	case name == "" || name == End:
		g.errs = append(g.errs, fmt.Errorf("step name %q is reserved or empty", name))
	case fn == nil:
		g.errs = append(g.errs, fmt.Errorf("step %q has no function", name))
	case g.steps[name] != nil:
		g.errs = append(g.errs, fmt.Errorf("step %q registered twice", name))
	default:
		g.steps[name] = fn
		g.order = append(g.order, name)
	}
	return g
}

// AddEdge adds unconditional edges. Several targets fan out in parallel.
func (g *Graph) AddEdge(from string, to ...string) *Graph {
	g.edges[from] = append(g.edges[from], to...)
	return g
}

// AddConditionalEdges routes from a step by the outcome of fn. Each outcome
// maps to one or more targets (several targets fan out) or to End.
func (g *Graph) AddConditionalEdges(from string, fn RouteFunc, outcomes map[string][]string) *Graph {
	if _, dup := g.routes[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("step %q already has conditional edges", from))
		return g
	}
	g.routes[from] = conditional{route: fn, outcomes: outcomes}
	return g
}

// SetConditionalEntry selects the initial step(s) from the session.
func (g *Graph) SetConditionalEntry(fn RouteFunc, outcomes map[string][]string) *Graph {
	g.entry = &conditional{route: fn, outcomes: outcomes}
	return g
}

// Validate checks that every edge target and every routing outcome names a
// registered step or End, that every step declares how it continues, and that
// every step is reachable from the entry.
func (g *Graph) Validate() error {
	errs := append([]error(nil), g.errs...)

	if g.entry == nil {
		errs = append(errs, errors.New("no entry point"))
	} else {
		errs = append(errs, g.checkConditional("entry", *g.entry)...)
	}

	for from, targets := range g.edges {
		if g.steps[from] == nil {
			errs = append(errs, fmt.Errorf("edge from unknown step %q", from))
		}
		if len(targets) == 0 {
			errs = append(errs, fmt.Errorf("edge from %q has no targets", from))
		}
		for _, to := range targets {
			if !g.known(to) {
				errs = append(errs, fmt.Errorf("edge %s -> %s: unknown target", from, to))
			}
		}
	}
	for from, c := range g.routes {
		if g.steps[from] == nil {
			errs = append(errs, fmt.Errorf("conditional edges from unknown step %q", from))
		}
		if _, both := g.edges[from]; both {
			errs = append(errs, fmt.Errorf("step %q has both static and conditional edges", from))
		}
		errs = append(errs, g.checkConditional(from, c)...)
	}
	for _, name := range g.order {
		_, static := g.edges[name]
		_, routed := g.routes[name]
		if !static && !routed {
			errs = append(errs, fmt.Errorf("step %q has no outgoing edge", name))
		}
	}
	if g.entry != nil {
		reachable := g.reachable()
		for _, name := range g.order {
			if !reachable[name] {
				errs = append(errs, fmt.Errorf("step %q is unreachable", name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
	}
	return nil
}

func (g *Graph) checkConditional(from string, c conditional) []error {
	var errs []error
	if c.route == nil {
		errs = append(errs, fmt.Errorf("%s: nil routing function", from))
	}
	if len(c.outcomes) == 0 {
		errs = append(errs, fmt.Errorf("%s: routing has no outcomes", from))
	}
	keys := make([]string, 0, len(c.outcomes))
	for k := range c.outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		targets := c.outcomes[k]
		if len(targets) == 0 {
			errs = append(errs, fmt.Errorf("%s: outcome %q has no targets", from, k))
		}
		for _, to := range targets {
			if !g.known(to) {
				errs = append(errs, fmt.Errorf("%s: outcome %q -> unknown step %q", from, k, to))
			}
		}
	}
	return errs
}

func (g *Graph) known(name string) bool {
	return name == End || g.steps[name] != nil
}

func (g *Graph) reachable() map[string]bool {
	seen := make(map[string]bool)
	var queue []string
	push := func(targets []string) {
		for _, t := range targets {
			if t != End && !seen[t] {
				seen[t] = true
				queue = append(queue, t)
			}
		}
	}
	for _, targets := range g.entry.outcomes {
		push(targets)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		push(g.edges[name])
		for _, targets := range g.routes[name].outcomes {
			push(targets)
		}
	}
	return seen
}

// successors returns the steps that follow from after it completed, given the
// merged session.
func (g *Graph) successors(from string, s state.Session) ([]string, error) {
	if c, ok := g.routes[from]; ok {
		return resolve(from, c, s)
	}
	return g.edges[from], nil
}

func resolve(from string, c conditional, s state.Session) ([]string, error) {
	outcome := c.route(s)
	targets, ok := c.outcomes[outcome]
	if !ok {
		return nil, fmt.Errorf("%s: routing returned unmapped outcome %q", from, outcome)
	}
	return targets, nil
}
