// Package resolver computes evaluation order over the graph's edges.
//
// The order comes from a depth-first search over the forward adjacency
// (producer to consumer). Each node is marked visiting on entry and visited on
// exit; reaching a node that is still visiting means the graph has a cycle and
// the resolver fails rather than breaking it. The reversed finishing order
// places every producer before all of its consumers.
package resolver

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/gridflow/internal/node"
)

// ErrCyclicDependency is returned when the visited part of the graph contains a cycle.
var ErrCyclicDependency = errors.New("cyclic dependency")

// CycleError carries the node ids forming the detected cycle. The first and
// last element are the same node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }

type colour uint8

const (
	unvisited colour = iota
	visiting
	visited
)

// TopologicalOrder returns node ids so that every edge's producer comes before
// its consumer. With no seeds every node is ordered. With seeds, the result
// holds exactly the seeds and everything transitively downstream of them;
// upstream ancestors are not included. Seeds that are not in nodes are ignored.
//
// Ties between independent branches follow node order and then edge order.
func TopologicalOrder(nodes []string, edges []node.Edge, seeds ...string) ([]string, error) {
	known := make(map[string]bool, len(nodes))
	for _, id := range nodes {
		known[id] = true
	}

	// Forward adjacency in edge order. Parallel edges between the same pair
	// of nodes collapse into one.
	adj := make(map[string][]string, len(nodes))
	for _, e := range edges {
		from, to := e.From.NodeID, e.To.NodeID
		if !known[from] || !known[to] {
			continue
		}
		if !slices.Contains(adj[from], to) {
			adj[from] = append(adj[from], to)
		}
	}

	roots := nodes
	if len(seeds) > 0 {
		roots = make([]string, 0, len(seeds))
		for _, id := range seeds {
			if known[id] {
				roots = append(roots, id)
			}
		}
		if len(roots) == 0 {
			return []string{}, nil
		}
	}

	state := make(map[string]colour, len(nodes))
	finished := make([]string, 0, len(nodes))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			start := slices.Index(stack, id)
			path := append(slices.Clone(stack[start:]), id)
			return &CycleError{Path: path}
		}

		state[id] = visiting
		stack = append(stack, id)
		for _, next := range adj[id] {
			if err := visit(next); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = visited
		finished = append(finished, id)
		return nil
	}

	for _, id := range roots {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	slices.Reverse(finished)
	return finished, nil
}
