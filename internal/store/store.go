package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/events"
	"github.com/specialistvlad/gridflow/internal/idgen"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/tidwall/btree"
	"github.com/zclconf/go-cty/cty"
)

// Store implements the graph store using maps guarded by a RWMutex. Insertion
// order of nodes and edges is kept in btree maps keyed by a sequence number,
// so listings are deterministic and stable across deletions.
type Store struct {
	mu  sync.RWMutex
	reg *registry.Registry

	emitter events.Emitter
	newID   idgen.Generator

	revision uint64
	seq      uint64

	nodes     map[string]*nodeEntry
	nodeOrder btree.Map[uint64, string]

	edges     map[string]*edgeEntry
	edgeOrder btree.Map[uint64, string]

	edgesFrom map[string]map[string]struct{} // Key: node ID, Value: set of outgoing edge IDs
	edgesTo   map[string]map[string]struct{} // Key: node ID, Value: set of incoming edge IDs
	inputs    map[node.Endpoint]string       // Key: input endpoint, Value: the one edge feeding it
}

type nodeEntry struct {
	seq  uint64
	node *node.Node
}

type edgeEntry struct {
	seq  uint64
	edge node.Edge
}

// Option configures a Store.
type Option func(*Store)

// WithEmitter sets the receiver of structural change events.
func WithEmitter(e events.Emitter) Option {
	return func(s *Store) {
		if e != nil {
			s.emitter = e
		}
	}
}

// WithIDGenerator overrides node id generation.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Store) {
		if g != nil {
			s.newID = g
		}
	}
}

// New creates a new, empty graph store validating against reg.
func New(reg *registry.Registry, opts ...Option) *Store {
	s := &Store{
		reg:       reg,
		emitter:   events.Discard,
		newID:     idgen.NodeID,
		nodes:     make(map[string]*nodeEntry),
		edges:     make(map[string]*edgeEntry),
		edgesFrom: make(map[string]map[string]struct{}),
		edgesTo:   make(map[string]map[string]struct{}),
		inputs:    make(map[node.Endpoint]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the node type registry the store validates against.
func (s *Store) Registry() *registry.Registry {
	return s.reg
}

// Revision returns the current structural revision. It increases on every
// successful mutation other than CommitOutputs.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// AddNode creates a node of the given type. Source slots start at their
// schema defaults, overridden by initial. Outputs start at their defaults.
func (s *Store) AddNode(ctx context.Context, typeName string, pos node.Position, initial map[string]cty.Value) (string, error) {
	logger := ctxlog.FromContext(ctx)

	nt, err := s.reg.Get(typeName)
	if err != nil {
		return "", err
	}
	sources, outputs := nt.Defaults()
	validated, err := validateSources(nt, "", initial)
	if err != nil {
		return "", err
	}
	for slot, v := range validated {
		sources[slot] = v
	}

	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generating node id: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.nodes[id]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("generated node id %q already exists", id)
	}
	s.seq++
	s.nodes[id] = &nodeEntry{seq: s.seq, node: &node.Node{
		ID:           id,
		Type:         typeName,
		Position:     pos,
		SourceValues: sources,
		OutputCache:  outputs,
	}}
	s.nodeOrder.Set(s.seq, id)
	rev := s.bump()
	s.mu.Unlock()

	logger.Debug("Node added.", "id", id, "type", typeName, "revision", rev)
	s.emitter.Emit(ctx, events.Event{Kind: events.NodeAdded, NodeIDs: []string{id}, Revision: rev})
	return id, nil
}

// UpdateNodeSources validates every entry of partial against its slot schema
// and then applies them all, or none if any entry is rejected.
func (s *Store) UpdateNodeSources(ctx context.Context, id string, partial map[string]cty.Value) error {
	s.mu.Lock()
	entry, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return &NodeNotFoundError{ID: id}
	}
	nt, err := s.reg.Get(entry.node.Type)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	validated, err := validateSources(nt, id, partial)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for slot, v := range validated {
		entry.node.SourceValues[slot] = v
	}
	rev := s.bump()
	s.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Node sources updated.", "id", id, "slots", len(validated), "revision", rev)
	s.emitter.Emit(ctx, events.Event{Kind: events.ValuesUpdated, NodeIDs: []string{id}, Revision: rev})
	return nil
}

// CheckNodeSources reports the error UpdateNodeSources would return for the
// same arguments, without applying anything.
func (s *Store) CheckNodeSources(id string, partial map[string]cty.Value) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.nodes[id]
	if !ok {
		return &NodeNotFoundError{ID: id}
	}
	nt, err := s.reg.Get(entry.node.Type)
	if err != nil {
		return err
	}
	_, err = validateSources(nt, id, partial)
	return err
}

// MoveNode changes a node's canvas position. It has no effect on evaluation.
func (s *Store) MoveNode(ctx context.Context, id string, pos node.Position) error {
	s.mu.Lock()
	entry, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return &NodeNotFoundError{ID: id}
	}
	entry.node.Position = pos
	rev := s.bump()
	s.mu.Unlock()

	s.emitter.Emit(ctx, events.Event{Kind: events.NodeMoved, NodeIDs: []string{id}, Revision: rev})
	return nil
}

// AddEdge connects a producer bus (output or source) to a consumer input.
// An input accepts at most one incoming edge.
func (s *Store) AddEdge(ctx context.Context, from, to node.Endpoint) (string, error) {
	s.mu.Lock()
	fromEntry, ok := s.nodes[from.NodeID]
	if !ok {
		s.mu.Unlock()
		return "", &NodeNotFoundError{ID: from.NodeID}
	}
	toEntry, ok := s.nodes[to.NodeID]
	if !ok {
		s.mu.Unlock()
		return "", &NodeNotFoundError{ID: to.NodeID}
	}
	fromType, err := s.reg.Get(fromEntry.node.Type)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	toType, err := s.reg.Get(toEntry.node.Type)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	if fromType.Producer(from.Bus) == registry.BusNone {
		s.mu.Unlock()
		return "", &UnknownBusError{NodeID: from.NodeID, Type: fromType.Name, Bus: from.Bus, Want: "output or source"}
	}
	if !toType.IsInput(to.Bus) {
		s.mu.Unlock()
		return "", &UnknownBusError{NodeID: to.NodeID, Type: toType.Name, Bus: to.Bus, Want: "input"}
	}
	if existing, taken := s.inputs[to]; taken {
		s.mu.Unlock()
		return "", &InputConnectedError{To: to, Existing: existing}
	}

	e := node.Edge{From: from, To: to}
	id := e.ID()
	s.seq++
	s.edges[id] = &edgeEntry{seq: s.seq, edge: e}
	s.edgeOrder.Set(s.seq, id)
	addToSet(s.edgesFrom, from.NodeID, id)
	addToSet(s.edgesTo, to.NodeID, id)
	s.inputs[to] = id
	rev := s.bump()
	s.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Edge added.", "id", id, "revision", rev)
	s.emitter.Emit(ctx, events.Event{Kind: events.EdgeAdded, EdgeIDs: []string{id}, Revision: rev})
	return id, nil
}

// DeleteEdge removes an edge. Deleting an unknown edge is a no-op and
// reports false.
func (s *Store) DeleteEdge(ctx context.Context, id string) bool {
	s.mu.Lock()
	if _, ok := s.edges[id]; !ok {
		s.mu.Unlock()
		return false
	}
	s.removeEdgeLocked(id)
	rev := s.bump()
	s.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Edge removed.", "id", id, "revision", rev)
	s.emitter.Emit(ctx, events.Event{Kind: events.EdgeRemoved, EdgeIDs: []string{id}, Revision: rev})
	return true
}

// DeleteNode removes a node together with every edge that touches it.
// Deleting an unknown node is a no-op and reports false.
func (s *Store) DeleteNode(ctx context.Context, id string) bool {
	s.mu.Lock()
	entry, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	incident := make(map[string]uint64)
	for eid := range s.edgesFrom[id] {
		incident[eid] = s.edges[eid].seq
	}
	for eid := range s.edgesTo[id] {
		incident[eid] = s.edges[eid].seq
	}
	removed := make([]string, 0, len(incident))
	for eid := range incident {
		removed = append(removed, eid)
	}
	sort.Slice(removed, func(i, j int) bool { return incident[removed[i]] < incident[removed[j]] })
	for _, eid := range removed {
		s.removeEdgeLocked(eid)
	}

	delete(s.nodes, id)
	s.nodeOrder.Delete(entry.seq)
	delete(s.edgesFrom, id)
	delete(s.edgesTo, id)
	rev := s.bump()
	s.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Node removed.", "id", id, "edges", len(removed), "revision", rev)
	if len(removed) > 0 {
		s.emitter.Emit(ctx, events.Event{Kind: events.EdgeRemoved, EdgeIDs: removed, Revision: rev})
	}
	s.emitter.Emit(ctx, events.Event{Kind: events.NodeRemoved, NodeIDs: []string{id}, Revision: rev})
	return true
}

// GetNode returns a copy of the node with the given id.
func (s *Store) GetNode(id string) (*node.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return entry.node.Clone(), true
}

// EdgesFrom returns the edges whose producer is the given node, in insertion order.
func (s *Store) EdgesFrom(id string) []node.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeList(s.edgesFrom[id])
}

// EdgesTo returns the edges whose consumer is the given node, in insertion order.
func (s *Store) EdgesTo(id string) []node.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeList(s.edgesTo[id])
}

// AllNodes returns copies of every node in insertion order.
func (s *Store) AllNodes() []*node.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*node.Node, 0, len(s.nodes))
	s.nodeOrder.Scan(func(_ uint64, id string) bool {
		nodes = append(nodes, s.nodes[id].node.Clone())
		return true
	})
	return nodes
}

// AllEdges returns every edge in insertion order.
func (s *Store) AllEdges() []node.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]node.Edge, 0, len(s.edges))
	s.edgeOrder.Scan(func(_ uint64, id string) bool {
		edges = append(edges, s.edges[id].edge)
		return true
	})
	return edges
}

func (s *Store) bump() uint64 {
	s.revision++
	return s.revision
}

func (s *Store) removeEdgeLocked(id string) {
	entry := s.edges[id]
	delete(s.edges, id)
	s.edgeOrder.Delete(entry.seq)
	removeFromSet(s.edgesFrom, entry.edge.From.NodeID, id)
	removeFromSet(s.edgesTo, entry.edge.To.NodeID, id)
	if s.inputs[entry.edge.To] == id {
		delete(s.inputs, entry.edge.To)
	}
}

func (s *Store) edgeList(ids map[string]struct{}) []node.Edge {
	entries := make([]*edgeEntry, 0, len(ids))
	for id := range ids {
		entries = append(entries, s.edges[id])
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	edges := make([]node.Edge, len(entries))
	for i, e := range entries {
		edges[i] = e.edge
	}
	return edges
}

// validateSources checks each supplied slot against the node type and its
// schema. Slots are checked in name order so the joined error is stable.
func validateSources(nt *registry.NodeType, nodeID string, values map[string]cty.Value) (map[string]cty.Value, error) {
	if len(values) == 0 {
		return nil, nil
	}
	slots := make([]string, 0, len(values))
	for slot := range values {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	out := make(map[string]cty.Value, len(values))
	var errs []error
	for _, slot := range slots {
		schema, ok := nt.Sources[slot]
		if !ok {
			errs = append(errs, &InvalidSourceError{
				NodeID: nodeID,
				Slot:   slot,
				Err:    &UnknownBusError{NodeID: nodeID, Type: nt.Name, Bus: slot, Want: "source"},
			})
			continue
		}
		v, err := schema.Validate(values[slot])
		if err != nil {
			errs = append(errs, &InvalidSourceError{NodeID: nodeID, Slot: slot, Err: err})
			continue
		}
		out[slot] = v
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func addToSet(m map[string]map[string]struct{}, key, id string) {
	if m[key] == nil {
		m[key] = make(map[string]struct{})
	}
	m[key][id] = struct{}{}
}

func removeFromSet(m map[string]map[string]struct{}, key, id string) {
	set := m[key]
	if set == nil {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, key)
	}
}
