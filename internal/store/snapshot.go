package store

import (
	"context"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/zclconf/go-cty/cty"
)

// Snapshot is a consistent, detached copy of the graph taken at Revision.
// Mutating the store afterwards does not affect it.
type Snapshot struct {
	Revision uint64
	Nodes    []*node.Node
	Edges    []node.Edge

	byID   map[string]*node.Node
	inputs map[node.Endpoint]node.Edge
}

// Snapshot copies every node and edge under a single read lock.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Revision: s.revision,
		Nodes:    make([]*node.Node, 0, len(s.nodes)),
		Edges:    make([]node.Edge, 0, len(s.edges)),
		byID:     make(map[string]*node.Node, len(s.nodes)),
		inputs:   make(map[node.Endpoint]node.Edge, len(s.edges)),
	}
	s.nodeOrder.Scan(func(_ uint64, id string) bool {
		n := s.nodes[id].node.Clone()
		snap.Nodes = append(snap.Nodes, n)
		snap.byID[id] = n
		return true
	})
	s.edgeOrder.Scan(func(_ uint64, id string) bool {
		e := s.edges[id].edge
		snap.Edges = append(snap.Edges, e)
		snap.inputs[e.To] = e
		return true
	})
	return snap
}

// Node looks up a node in the snapshot.
func (snap *Snapshot) Node(id string) (*node.Node, bool) {
	n, ok := snap.byID[id]
	return n, ok
}

// NodeIDs returns the node ids in insertion order.
func (snap *Snapshot) NodeIDs() []string {
	ids := make([]string, len(snap.Nodes))
	for i, n := range snap.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Feeding returns the edge connected to the given input, if any.
func (snap *Snapshot) Feeding(input node.Endpoint) (node.Edge, bool) {
	e, ok := snap.inputs[input]
	return e, ok
}

// Commit is the outcome of evaluating one node. A nil Outputs map leaves the
// output cache untouched; Error replaces the node's last error.
type Commit struct {
	NodeID  string
	Outputs map[string]cty.Value
	Error   string
}

// CommitOutputs writes evaluation results back into the store. It is the only
// write path for output caches. Nodes deleted since the snapshot at revision
// are skipped. It returns the ids that were written, in the given order.
func (s *Store) CommitOutputs(ctx context.Context, revision uint64, commits []Commit) []string {
	logger := ctxlog.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if revision != s.revision {
		logger.Debug("Committing outputs computed against an older revision.", "snapshot", revision, "current", s.revision)
	}
	written := make([]string, 0, len(commits))
	for _, c := range commits {
		entry, ok := s.nodes[c.NodeID]
		if !ok {
			logger.Debug("Skipping commit for deleted node.", "id", c.NodeID)
			continue
		}
		for bus, v := range c.Outputs {
			entry.node.OutputCache[bus] = v
		}
		entry.node.Error = c.Error
		written = append(written, c.NodeID)
	}
	return written
}
