// Package node defines the graph entities: nodes, the endpoints of an edge,
// and edges themselves. Entities reference each other by id only; the store
// resolves ids, so no entity ever holds a pointer to another.
package node

import (
	"encoding/json"
	"maps"

	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Position is the node's location on the canvas. The engine never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single vertex in the graph.
type Node struct {
	// ID is opaque and unique within a store.
	ID string
	// Type is a key into the node type registry.
	Type     string
	Position Position
	// SourceValues holds the user-entered value for every source bus.
	SourceValues map[string]cty.Value
	// OutputCache holds the last successfully computed value of every output bus.
	OutputCache map[string]cty.Value
	// Error is the message of the most recent evaluation failure, empty when
	// the last evaluation of this node succeeded.
	Error string
}

// Clone returns a copy whose maps can be modified without affecting n.
// cty values are immutable, so they are shared.
func (n *Node) Clone() *Node {
	c := *n
	c.SourceValues = maps.Clone(n.SourceValues)
	c.OutputCache = maps.Clone(n.OutputCache)
	return &c
}

type nodeView struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Position     Position       `json:"position"`
	SourceValues map[string]any `json:"sourceValues"`
	OutputCache  map[string]any `json:"outputCache"`
	Error        string         `json:"error,omitempty"`
}

// MarshalJSON encodes the serializable view of a node consumed by the
// persistence layer.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeView{
		ID:           n.ID,
		Type:         n.Type,
		Position:     n.Position,
		SourceValues: nativeMap(n.SourceValues),
		OutputCache:  nativeMap(n.OutputCache),
		Error:        n.Error,
	})
}

func nativeMap(m map[string]cty.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = value.Native(v)
	}
	return out
}

// Endpoint addresses one bus of one node.
type Endpoint struct {
	NodeID string `json:"nodeId"`
	Bus    string `json:"busKey"`
}

func (e Endpoint) String() string {
	return e.NodeID + "." + e.Bus
}

// Edge connects a producer bus to an input bus. Its identity is derived from
// its endpoints.
type Edge struct {
	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`
}

// ID returns the edge's derived identity.
func (e Edge) ID() string {
	return e.From.String() + "->" + e.To.String()
}

// MarshalJSON includes the derived id alongside the endpoints.
func (e Edge) MarshalJSON() ([]byte, error) {
	type plain Edge
	return json.Marshal(struct {
		ID string `json:"id"`
		plain
	}{ID: e.ID(), plain: plain(e)})
}
